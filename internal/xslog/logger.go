package xslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLevel  = "LOG_LEVEL"
	EnvFormat = "LOG_FORMAT"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configure the process logger. The zero value logs JSON at info.
type Options struct {
	Level  slog.Level
	Format Format
}

// ParseLevel accepts debug, info, warn or error, case-insensitively, with
// an optional offset such as "debug+2".
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid log format %q (valid: json, text)", s)
	}
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT. Bad values fall back to
// the defaults rather than failing startup.
func OptionsFromEnv() Options {
	opts := Options{Level: slog.LevelInfo, Format: FormatJSON}
	if v := os.Getenv(EnvLevel); v != "" {
		if l, err := ParseLevel(v); err == nil {
			opts.Level = l
		}
	}
	if f, err := ParseFormat(os.Getenv(EnvFormat)); err == nil {
		opts.Format = f
	}
	return opts
}

func NewLogger(w io.Writer, opts Options) *slog.Logger {
	h := &slog.HandlerOptions{Level: opts.Level}
	if opts.Format == FormatText {
		return slog.New(slog.NewTextHandler(w, h))
	}
	return slog.New(slog.NewJSONHandler(w, h))
}

func NewLoggerFromEnv(w io.Writer) *slog.Logger {
	return NewLogger(w, OptionsFromEnv())
}
