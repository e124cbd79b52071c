package trace

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckOrdering(t *testing.T) {
	cases := []struct {
		name    string
		ids     []int
		workers int
		ok      bool
	}{
		{"single try", []int{2, 0, 1, 1, 2, 0}, 3, true},
		{"two tries", []int{0, 1, 1, 0, 1, 0, 0, 1}, 2, true},
		{"early departure", []int{0, 1, 0, 2, 1, 2}, 3, false},
		{"duplicate arrival", []int{0, 0, 1, 0, 1, 1}, 3, false},
		{"missing departure", []int{0, 1, 2, 0, 1, 1}, 3, false},
		{"short", []int{0, 1, 0}, 2, false},
		{"empty", nil, 2, false},
		{"out of range", []int{0, 5, 0, 5}, 2, false},
		{"bad workers", []int{0, 0}, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CheckOrdering(c.ids, c.workers)
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCheckRounds(t *testing.T) {
	good := []Mark{
		{0, 0, Arrived}, {0, 1, Arrived}, {0, 1, Departed},
		{1, 1, Arrived}, {0, 0, Departed}, {1, 0, Arrived},
		{1, 0, Departed}, {1, 1, Departed},
	}
	if err := CheckRounds(good, 2, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	early := []Mark{
		{0, 0, Arrived}, {0, 0, Departed}, {0, 1, Arrived}, {0, 1, Departed},
	}
	if err := CheckRounds(early, 2, 1); err == nil {
		t.Fatal("expected error for departure before all arrivals")
	}

	short := []Mark{{0, 0, Arrived}, {0, 1, Arrived}, {0, 0, Departed}}
	if err := CheckRounds(short, 2, 1); err == nil {
		t.Fatal("expected error for missing departure")
	}

	if err := CheckRounds([]Mark{{3, 0, Arrived}}, 1, 1); err == nil {
		t.Fatal("expected error for round out of range")
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	const workers = 8
	const rounds = 20
	r := NewRecorder(workers * rounds * 2)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			for round := range rounds {
				r.Record(round, w, Arrived)
				r.Record(round, w, Departed)
			}
		}()
	}
	wg.Wait()

	if got := len(r.Marks()); got != workers*rounds*2 {
		t.Fatalf("marks = %d, want %d", got, workers*rounds*2)
	}
	for round := range rounds {
		if got := r.Count(round, Arrived); got != workers {
			t.Errorf("round %d arrivals = %d, want %d", round, got, workers)
		}
		if got := r.Count(round, Departed); got != workers {
			t.Errorf("round %d departures = %d, want %d", round, got, workers)
		}
	}
	if got := r.Count(rounds, Arrived); got != 0 {
		t.Errorf("count for unused round = %d", got)
	}
}

func TestRecorder_IDs(t *testing.T) {
	r := NewRecorder(0)
	r.Record(0, 3, Arrived)
	r.Record(0, 1, Arrived)
	r.Record(0, 3, Departed)
	if diff := cmp.Diff([]int{3, 1, 3}, r.IDs()); diff != "" {
		t.Fatalf("IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestIDs_WriteParse(t *testing.T) {
	ids := []int{4, 0, 2, 2, 0, 4}
	var buf bytes.Buffer
	if err := WriteIDs(&buf, ids); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "4 0 2 2 0 4 "; got != want {
		t.Fatalf("WriteIDs = %q, want %q", got, want)
	}
	got, err := ParseIDs(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ids, got); diff != "" {
		t.Fatalf("ParseIDs mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseIDs(strings.NewReader("1 x 2")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestKind_String(t *testing.T) {
	if Arrived.String() != "arrived" || Departed.String() != "departed" {
		t.Fatalf("unexpected names %q %q", Arrived, Departed)
	}
	if got := Kind(9).String(); got != "Kind(9)" {
		t.Fatalf("Kind(9) = %q", got)
	}
}

func TestRecorder_CountWhileRecording(t *testing.T) {
	const workers = 2
	r := NewRecorder(0)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			r.Record(0, w, Arrived)
			if n := r.Count(0, Arrived); n < 1 || n > workers {
				t.Errorf("count during recording = %d", n)
			}
		}()
	}
	wg.Wait()

	if n := r.Count(0, Arrived); n != workers {
		t.Fatalf("count = %d, want %d", n, workers)
	}
	if n := len(r.Marks()); n != workers {
		t.Fatalf("marks = %d, want %d", n, workers)
	}
}

func TestCheckRounds_InvalidCounts(t *testing.T) {
	if err := CheckRounds(nil, 1, -1); err == nil {
		t.Fatal("expected error for negative round count")
	}
	if err := CheckRounds(nil, 0, 1); err == nil {
		t.Fatal("expected error for zero workers")
	}
	if err := CheckRounds(nil, 3, 0); err != nil {
		t.Fatalf("zero rounds: %v", err)
	}
}
