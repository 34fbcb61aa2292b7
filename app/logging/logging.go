package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog logger. Output goes to stdout and, when
// logFile is set, is appended to that file as well. The returned function
// closes the log file.
func Setup(debug bool, logFile string) (func() error, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	writers := []io.Writer{os.Stdout}
	closeFn := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
		closeFn = f.Close
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	return closeFn, nil
}
