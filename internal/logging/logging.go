package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	Level string // debug, info, warn, error
	Dev   bool   // human readable console output
	File  string // optional path; rotated daily and kept for a week
}

// New builds the process logger. Console output in development, JSON otherwise.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if opts.Dev {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if opts.File != "" {
		rotating, err := rotatelogs.New(
			opts.File+".%Y%m%d",
			rotatelogs.WithLinkName(opts.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("[logging New] rotatelogs: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, rotating)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
