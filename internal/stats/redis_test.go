package stats

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestNewRedisMirror_InvalidURL(t *testing.T) {
	_, err := NewRedisMirror("invalid://url")
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestNewRedisMirror_ConnectionFailure(t *testing.T) {
	_, err := NewRedisMirror("redis://localhost:9999")
	if err == nil {
		t.Fatal("expected error for connection failure")
	}
}

func TestParseMember(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123e6, time.UTC)
	member := "1709294400123:0.532:7"

	obs, err := parseMember(member)
	if err != nil {
		t.Fatalf("parseMember() error = %v", err)
	}

	if !obs.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", obs.Timestamp, ts)
	}
	if math.Abs(obs.Duration-0.532) > 1e-9 {
		t.Errorf("Duration = %f, want 0.532", obs.Duration)
	}
}

func TestMemberFor_UniquePerSequence(t *testing.T) {
	// Same millisecond, same duration: the sequence suffix must keep the
	// members distinct so neither observation is lost in the sorted set.
	obs := Observation{
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 123e6, time.UTC),
		Duration:  0.01,
	}

	first := memberFor(obs, 1)
	second := memberFor(obs, 2)

	if first == second {
		t.Fatalf("memberFor produced identical members %q for distinct sequences", first)
	}

	for _, member := range []string{first, second} {
		got, err := parseMember(member)
		if err != nil {
			t.Fatalf("parseMember(%q) error = %v", member, err)
		}
		if !got.Timestamp.Equal(obs.Timestamp) {
			t.Errorf("Timestamp = %v, want %v", got.Timestamp, obs.Timestamp)
		}
		if math.Abs(got.Duration-obs.Duration) > 1e-9 {
			t.Errorf("Duration = %f, want %f", got.Duration, obs.Duration)
		}
	}
}

func TestParseMember_Malformed(t *testing.T) {
	for _, member := range []string{"no-separator", "abc:0.5", "1709294400123:fast"} {
		if _, err := parseMember(member); err == nil {
			t.Errorf("parseMember(%q) error = nil, want error", member)
		}
	}
}

func TestRedisMirror_SaveAndLoad(t *testing.T) {
	// Skip if Redis not available
	mirror, err := NewRedisMirror("redis://localhost:6379/15")
	if err != nil {
		t.Skip("Redis not available:", err)
	}
	defer mirror.Close()

	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	observations := []Observation{
		{Timestamp: now.Add(-10 * time.Minute), Duration: 0.1},
		{Timestamp: now.Add(-5 * time.Minute), Duration: 0.2},
		{Timestamp: now, Duration: 0.3},
	}

	for _, obs := range observations {
		if err := mirror.SaveObservation(ctx, "test_query", obs); err != nil {
			t.Fatalf("SaveObservation failed: %v", err)
		}
	}

	loaded, err := mirror.LoadHistory(ctx, "test_query", now.Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	if len(loaded) != len(observations) {
		t.Fatalf("len(loaded) = %d, want %d", len(loaded), len(observations))
	}
}
