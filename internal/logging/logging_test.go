package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "json")
	log.Info("hidden")
	log.WithField("category", "tennis").Warn("pool reset")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"category":"tennis"`) {
		t.Fatalf("expected json field, got %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	log := Discard()
	ctx := WithLogger(context.Background(), log)
	if FromContext(ctx) != logrus.FieldLogger(log) {
		t.Fatalf("expected stored logger")
	}
	if FromContext(context.Background()) != logrus.FieldLogger(logrus.StandardLogger()) {
		t.Fatalf("expected standard logger fallback")
	}
}
