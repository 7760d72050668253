package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// ParseLevel maps a level name to the logger's level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info", "":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return log.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// Setup installs the root logger writing to stderr
func Setup(level string, json bool) error {
	return SetupWriter(os.Stderr, level, json)
}

// SetupWriter installs the root logger writing to w
func SetupWriter(w io.Writer, level string, json bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	var handler slog.Handler
	if json {
		handler = log.JSONHandlerWithLevel(w, lvl)
	} else {
		handler = log.NewTerminalHandlerWithLevel(w, lvl, useColor(w))
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
