package config

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger installs the default logger: text to stderr for reading, JSON
// to a file for machine parsing. Returns a cleanup function closing the
// file. An empty path or an unopenable file falls back to stderr only.
func SetupLogger(logFile string, level slog.Level) func() error {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if logFile == "" {
		slog.SetDefault(slog.New(stderrHandler))
		return func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.SetDefault(slog.New(stderrHandler))
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(slogmulti.Fanout(stderrHandler, fileHandler)))

	return file.Close
}
