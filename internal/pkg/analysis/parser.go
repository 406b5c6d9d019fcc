package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/airenas/clipcheck/internal/pkg/api"
)

var fencedJSONRegexp = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

type analysisPayload struct {
	QualityScore    *float64 `json:"qualityScore"`
	SafetyPassed    *bool    `json:"safetyPassed"`
	Insights        []string `json:"insights"`
	Concerns        []string `json:"concerns"`
	Recommendations []string `json:"recommendations"`
}

// parseResponse extracts structured analysis from free form LLM text.
// JSON may come raw or inside the first fenced code block
func parseResponse(text string) (*api.AnalysisResult, error) {
	payload := strings.TrimSpace(text)
	if m := fencedJSONRegexp.FindStringSubmatch(payload); m != nil {
		payload = strings.TrimSpace(m[1])
	}
	var data analysisPayload
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("can't unmarshal: %w", err)
	}
	if data.QualityScore == nil {
		return nil, fmt.Errorf("no qualityScore")
	}
	if data.SafetyPassed == nil {
		return nil, fmt.Errorf("no safetyPassed")
	}
	return &api.AnalysisResult{
		QualityScore:    clamp01(*data.QualityScore),
		SafetyPassed:    *data.SafetyPassed,
		Insights:        orEmpty(data.Insights),
		Concerns:        orEmpty(data.Concerns),
		Recommendations: orEmpty(data.Recommendations),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
