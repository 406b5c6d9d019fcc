package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"

	"github.com/airenas/clipcheck/internal/pkg/analysis"
	"github.com/airenas/clipcheck/internal/pkg/copyright"
	"github.com/airenas/clipcheck/internal/pkg/filer"
	"github.com/airenas/clipcheck/internal/pkg/fingerprint"
	"github.com/airenas/clipcheck/internal/pkg/pipeline"
	"github.com/airenas/clipcheck/internal/pkg/postgres"
	"github.com/airenas/clipcheck/internal/pkg/quality"
	"github.com/airenas/clipcheck/internal/pkg/sessions"
	"github.com/airenas/clipcheck/internal/pkg/transcription"
	"github.com/airenas/clipcheck/internal/pkg/utils"
	"github.com/airenas/clipcheck/internal/pkg/worker"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &worker.ServiceData{}
	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	goapp.Log.Info().Int32("max_conn", dbConfig.MaxConns).Int32("min_conn", dbConfig.MinConns).Msg("db info")

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	data.WorkerCount = cfg.GetInt("worker.count")
	data.Testing = cfg.GetBool("worker.testing")
	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	store, err := sessions.NewStore(cfg.GetString("kv.url"), cfg.GetString("kv.token"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init sessions store")
	}
	data.Sessions = store

	data.Filer, err = filer.NewFiler(ctx, filer.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init filer")
	}

	qualityChecker, err := quality.NewClient(cfg.GetString("quality.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init quality checker")
	}

	lookup, err := copyright.NewLookupClient(cfg.GetString("copyright.url"), cfg.GetString("copyright.key"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init copyright lookup")
	}
	detector, err := copyright.NewDetector(fingerprint.NewExtractor(), lookup)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init copyright detector")
	}

	transcriber, err := transcription.NewClient(transcription.Options{URL: cfg.GetString("openai.url"),
		APIKey: cfg.GetString("openai.key"), Model: cfg.GetString("openai.transcribeModel")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init transcriber")
	}

	analyzer, err := analysis.NewAnalyzer(analysis.Options{URL: cfg.GetString("openai.url"),
		APIKey: cfg.GetString("openai.key"), Model: cfg.GetString("openai.analysisModel")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init analyzer")
	}

	notifyingStore, err := worker.NewNotifyingStore(store, data.MsgSender)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init notifying store")
	}

	data.Runner, err = pipeline.NewPipeline(notifyingStore, qualityChecker, detector, transcriber, analyzer)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init pipeline")
	}

	printBanner()

	go utils.RunPerfEndpoint()

	ctx, cancelFunc := context.WithCancel(context.Background())
	doneCh, err := worker.StartWorkerService(ctx, data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start worker service")
	}

	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
         ___             __              __
   _____/ (_)___  _____/ /_  ___  _____/ /__
  / ___/ / / __ \/ ___/ __ \/ _ \/ ___/ //_/
 / /__/ / / /_/ / /__/ / / /  __/ /__/ ,<
 \___/_/_/ .___/\___/_/ /_/\___/\___/_/|_|
        /_/
                      __
 _      ______  _____/ /_____  _____
| | /| / / __ \/ ___/ //_/ _ \/ ___/
| |/ |/ / /_/ / /  / ,< /  __/ /
|__/|__/\____/_/  /_/|_|\___/_/     v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/clipcheck"))
}
