package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComponentLogger(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := Component("pipeline")
	l.Info().Int("count", 3).Msg("embedded")

	out := buf.String()
	for _, want := range []string{`"component":"pipeline"`, `"count":3`, `"message":"embedded"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
