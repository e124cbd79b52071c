// Package trace records the order in which workers pass a barrier and
// checks the recorded order against the barrier's release guarantees.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/llxisdsh/pb"
)

// Kind tells whether a mark was recorded before or after the barrier.
type Kind uint8

const (
	Arrived Kind = iota
	Departed
)

func (k Kind) String() string {
	switch k {
	case Arrived:
		return "arrived"
	case Departed:
		return "departed"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Mark is one recorded event.
type Mark struct {
	Round  int
	Worker int
	Kind   Kind
}

type tallyKey struct {
	round int
	kind  Kind
}

// Recorder is the shared recording context handed to every worker of a
// scenario. Marks are kept in the order Record acquired the lock.
type Recorder struct {
	mu    sync.Mutex
	marks []Mark

	tally *pb.MapOf[tallyKey, int]
}

// NewRecorder returns an empty recorder sized for hint marks.
func NewRecorder(hint int) *Recorder {
	return &Recorder{
		marks: make([]Mark, 0, max(hint, 0)),
		tally: new(pb.MapOf[tallyKey, int]),
	}
}

// Record appends a mark for worker in round.
func (r *Recorder) Record(round, worker int, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, Mark{Round: round, Worker: worker, Kind: kind})

	// pb's bucket reads are not visible to the race detector, so the
	// tally is only touched under mu.
	r.tally.ProcessEntry(
		tallyKey{round: round, kind: kind},
		func(e *pb.EntryOf[tallyKey, int]) (*pb.EntryOf[tallyKey, int], int, bool) {
			if e == nil {
				return &pb.EntryOf[tallyKey, int]{Value: 1}, 1, false
			}
			return &pb.EntryOf[tallyKey, int]{Value: e.Value + 1}, e.Value + 1, true
		},
	)
}

// Count returns how many marks of kind were recorded for round.
func (r *Recorder) Count(round int, kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, _ := r.tally.Load(tallyKey{round: round, kind: kind})
	return n
}

// Marks returns a copy of the recorded marks in order.
func (r *Recorder) Marks() []Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mark(nil), r.marks...)
}

// IDs returns the worker ids of all marks in order.
func (r *Recorder) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, len(r.marks))
	for i, m := range r.marks {
		ids[i] = m.Worker
	}
	return ids
}

// CheckOrdering verifies a flat artifact of worker ids written in blocks
// of 2*workers, one block per try. The first half of each block must
// name every worker exactly once (all arrivals) and the second half must
// name the same workers again (all departures).
func CheckOrdering(ids []int, workers int) error {
	if workers < 1 {
		return fmt.Errorf("trace: invalid worker count %d", workers)
	}
	block := 2 * workers
	if len(ids) == 0 || len(ids)%block != 0 {
		return fmt.Errorf("trace: %d ids is not a whole number of %d-id blocks", len(ids), block)
	}
	seen := make([]bool, workers)
	for try := 0; try < len(ids)/block; try++ {
		set := ids[try*block : (try+1)*block]
		clear(seen)
		for _, id := range set[:workers] {
			if id < 0 || id >= workers {
				return fmt.Errorf("trace: try %d: worker id %d out of range", try, id)
			}
			if seen[id] {
				return fmt.Errorf("trace: try %d: worker %d departed before all workers arrived", try, id)
			}
			seen[id] = true
		}
		for _, id := range set[workers:] {
			if id < 0 || id >= workers || !seen[id] {
				return fmt.Errorf("trace: try %d: unexpected departure of worker %d", try, id)
			}
			seen[id] = false
		}
	}
	return nil
}

// CheckRounds verifies round-tagged marks: every round in [0, rounds)
// has exactly workers arrivals and workers departures, and no departure
// from a round precedes an arrival to the same round.
func CheckRounds(marks []Mark, workers, rounds int) error {
	if workers < 1 || rounds < 0 {
		return fmt.Errorf("trace: invalid worker count %d or round count %d", workers, rounds)
	}
	arrived := make([]int, rounds)
	departed := make([]int, rounds)
	for i, m := range marks {
		if m.Round < 0 || m.Round >= rounds {
			return fmt.Errorf("trace: mark %d: round %d out of range", i, m.Round)
		}
		switch m.Kind {
		case Arrived:
			if departed[m.Round] != 0 {
				return fmt.Errorf("trace: mark %d: worker %d arrived at round %d after a departure",
					i, m.Worker, m.Round)
			}
			arrived[m.Round]++
		case Departed:
			if arrived[m.Round] != workers {
				return fmt.Errorf("trace: mark %d: worker %d departed round %d with %d/%d arrivals",
					i, m.Worker, m.Round, arrived[m.Round], workers)
			}
			departed[m.Round]++
		default:
			return fmt.Errorf("trace: mark %d: %v", i, m.Kind)
		}
	}
	for r := range rounds {
		if arrived[r] != workers || departed[r] != workers {
			return fmt.Errorf("trace: round %d: %d arrivals, %d departures, want %d",
				r, arrived[r], departed[r], workers)
		}
	}
	return nil
}

// WriteIDs writes ids as space-separated integers, each followed by a
// single space.
func WriteIDs(w io.Writer, ids []int) error {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		bw.WriteString(strconv.Itoa(id))
		bw.WriteByte(' ')
	}
	return bw.Flush()
}

// ParseIDs reads a whitespace-separated integer artifact.
func ParseIDs(r io.Reader) ([]int, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	var ids []int
	for sc.Scan() {
		id, err := strconv.Atoi(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("trace: parse id %d: %w", len(ids), err)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read ids: %w", err)
	}
	return ids, nil
}
