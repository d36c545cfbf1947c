// Package logging configures the global zerolog logger shared by every
// command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init points the global logger at stderr and, when file is set, at a
// rotating log file as well.
func Init(level, file string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return fmt.Errorf("log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
		})
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		With().Timestamp().Caller().Logger()
	return nil
}
