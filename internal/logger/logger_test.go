package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestErrorGoesToStderrWithContextFields(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := New(Options{Service: "test", Level: zerolog.DebugLevel, Stdout: &stdout, Stderr: &stderr})

	ctx := log.WithField(context.Background(), "request_id", "req-123")
	log.Error(ctx, "boom", errors.New("kaboom"))

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `"request_id":"req-123"`)
	assert.Contains(t, stderr.String(), `"error":"kaboom"`)
}

func TestInfoAndWarnGoToStdout(t *testing.T) {
	var stdout, stderr bytes.Buffer
	log := New(Options{Service: "test", Stdout: &stdout, Stderr: &stderr})

	ctx := log.WithFields(context.Background(), map[string]any{"swap_id": 7})
	log.Info(ctx, "swap.accepted")
	log.Warn(ctx, "swap.offer_missing")

	assert.Empty(t, stderr.String())
	assert.Contains(t, stdout.String(), "swap.accepted")
	assert.Contains(t, stdout.String(), "swap.offer_missing")
	assert.Contains(t, stdout.String(), `"swap_id":7`)
}

func TestLevelFiltersDebug(t *testing.T) {
	var stdout bytes.Buffer
	log := New(Options{Service: "test", Level: zerolog.InfoLevel, Stdout: &stdout})

	log.Debug(context.Background(), "hidden")
	assert.Empty(t, stdout.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}
