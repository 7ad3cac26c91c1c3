package stats

import (
	"math"
	"testing"
	"time"

	"github.com/esprobe/esprobe/internal/ledger"
)

const tolerance = 1e-9

func TestAverage_NoObservations(t *testing.T) {
	a := New(nil)

	if avg := a.Average("never-seen"); avg != 0 {
		t.Errorf("Average(never-seen) = %f, want 0", avg)
	}
	if count := a.Count("never-seen"); count != 0 {
		t.Errorf("Count(never-seen) = %d, want 0", count)
	}
}

func TestRecord_ArithmeticMean(t *testing.T) {
	a := New(nil)

	durations := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	var sum float64
	for _, d := range durations {
		a.Record("q", d)
		sum += d
	}

	want := sum / float64(len(durations))
	if got := a.Average("q"); math.Abs(got-want) > tolerance {
		t.Errorf("Average(q) = %f, want %f", got, want)
	}
	if got := a.Count("q"); got != int64(len(durations)) {
		t.Errorf("Count(q) = %d, want %d", got, len(durations))
	}
}

func TestRecord_IndependentSeries(t *testing.T) {
	a := New(nil)

	a.Record("fast", 0.01)
	a.Record("fast", 0.03)
	a.Record("slow", 2.0)

	if got := a.Average("fast"); math.Abs(got-0.02) > tolerance {
		t.Errorf("Average(fast) = %f, want 0.02", got)
	}
	if got := a.Average("slow"); math.Abs(got-2.0) > tolerance {
		t.Errorf("Average(slow) = %f, want 2.0", got)
	}
}

func TestNew_SeedsFromLedgerHistory(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []ledger.Result{
		{Timestamp: ts, Name: "a", Duration: 1.0},
		{Timestamp: ts.Add(time.Minute), Name: "a", Duration: 3.0},
		{Timestamp: ts.Add(2 * time.Minute), Name: "b", Duration: 0.5},
	}

	a := New(seed)

	// First post-restart average already reflects all prior rows.
	if got := a.Average("a"); math.Abs(got-2.0) > tolerance {
		t.Errorf("Average(a) = %f, want 2.0", got)
	}

	a.Record("a", 5.0)
	if got := a.Average("a"); math.Abs(got-3.0) > tolerance {
		t.Errorf("Average(a) after new observation = %f, want 3.0", got)
	}

	if got := a.Average("b"); math.Abs(got-0.5) > tolerance {
		t.Errorf("Average(b) = %f, want 0.5", got)
	}
}

func TestNames(t *testing.T) {
	a := New(nil)
	a.Record("zeta", 0.1)
	a.Record("alpha", 0.2)
	a.Record("mid", 0.3)

	names := a.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
