package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
)

// MakeFileName joins session ID and file name into a storage key
func MakeFileName(ID, name string) string {
	if ID == "" {
		return name
	}
	return ID + "/" + name
}

// MakeValidateFileName sanitizes the file name and joins it with the session ID.
// Names with path separators or parent references are rejected
func MakeValidateFileName(ID, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("no file name")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", fmt.Errorf("wrong file name '%s'", name)
	}
	return MakeFileName(ID, name), nil
}

// SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	return ext == ".wav" || ext == ".mp3" || ext == ".mp4" || ext == ".m4a"
}

// SaveTmpFile stores reader content into a temporary file with the wanted
// extension and returns its path together with a cleanup func.
// The cleanup func always removes the file
func SaveTmpFile(r io.Reader, ext string) (string, func(), error) {
	f, err := os.CreateTemp("", "clipcheck-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("can't create tmp file: %w", err)
	}
	clean := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			goapp.Log.Warn().Err(err).Str("file", f.Name()).Msg("can't remove tmp file")
		}
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		clean()
		return "", nil, fmt.Errorf("can't write tmp file: %w", err)
	}
	if err := f.Close(); err != nil {
		clean()
		return "", nil, fmt.Errorf("can't close tmp file: %w", err)
	}
	return f.Name(), clean, nil
}

// WithTmpFile stages data into a scoped temporary file and invokes f with its
// path. The file is removed on every exit path before the call returns
func WithTmpFile(data []byte, ext string, f func(path string) error) error {
	path, clean, err := SaveTmpFile(bytes.NewReader(data), ext)
	if err != nil {
		return err
	}
	defer clean()
	return f(path)
}
