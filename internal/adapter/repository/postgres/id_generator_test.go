package postgres

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iho/mpay/internal/infrastructure/clock"
)

func TestRunIDGeneratorUsesClock(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	gen := NewRunIDGenerator(clock.NewFixed(now))

	first := gen.Generate()
	second := gen.Generate()

	if first == second {
		t.Fatalf("expected distinct ids, got %s twice", first)
	}

	id, err := ulid.Parse(first)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !ulid.Time(id.Time()).Equal(now) {
		t.Fatalf("expected timestamp %v, got %v", now, ulid.Time(id.Time()))
	}
}
