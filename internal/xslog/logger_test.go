package xslog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "debug+2", want: slog.LevelDebug + 2},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "text")

	opts := OptionsFromEnv()
	if opts.Level != slog.LevelWarn || opts.Format != FormatText {
		t.Fatalf("OptionsFromEnv() = %+v, want warn/text", opts)
	}

	var buf bytes.Buffer
	logger := NewLogger(&buf, opts)
	logger.Info("dropped")
	logger.Warn("kept", Provider("oura"))

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=kept") || !strings.Contains(out, "provider=oura") {
		t.Errorf("text output = %q, want msg=kept provider=oura", out)
	}
}

func TestOptionsFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv(EnvLevel, "loud")
	t.Setenv(EnvFormat, "xml")

	if got := OptionsFromEnv(); got != (Options{Level: slog.LevelInfo, Format: FormatJSON}) {
		t.Errorf("OptionsFromEnv() = %+v, want info/json", got)
	}
}
