package heat

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/threadproj/barrier"
)

// Config sizes a solve.
type Config struct {
	Rows       int
	Cols       int
	Iterations int
	Workers    int
}

// DefaultConfig returns the 256x512 plate, 1000 iterations and 16
// workers used by the application scenario.
func DefaultConfig() Config {
	return Config{
		Rows:       256,
		Cols:       512,
		Iterations: 1000,
		Workers:    16,
	}
}

func (c Config) validate() error {
	if c.Rows < 2 || c.Cols < 2 {
		return fmt.Errorf("heat: plate %dx%d too small, need at least 2x2", c.Rows, c.Cols)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("heat: negative iteration count %d", c.Iterations)
	}
	if c.Workers < 1 {
		return fmt.Errorf("heat: worker count %d: %w", c.Workers, barrier.ErrInvalidArgument)
	}
	return nil
}

// Range is a half-open span of rows owned by one worker.
type Range struct {
	Begin, End int
}

// Partition splits rows among workers as evenly as float accumulation
// allows. The last worker always ends at rows; a worker may own no rows
// when workers > rows.
func Partition(rows, workers int) []Range {
	ranges := make([]Range, workers)
	var accum float64
	step := float64(rows) / float64(workers)
	for w := 0; w < workers-1; w++ {
		next := accum + step
		ranges[w] = Range{Begin: int(accum), End: int(next)}
		accum = next
	}
	ranges[workers-1] = Range{Begin: int(accum), End: rows}
	return ranges
}

// Solve runs cfg.Iterations steps on cfg.Workers goroutines. Every
// iteration waits on the first barrier before computing deltas, so no
// worker reads a row another worker is still updating, and on the second
// barrier before applying them, so no worker writes a row another worker
// is still reading.
func Solve(cfg Config) (*Plate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := NewPlate(cfg.Rows, cfg.Cols)

	var compute, apply barrier.Barrier
	if err := compute.Init(cfg.Workers); err != nil {
		return nil, err
	}
	defer compute.Destroy()
	if err := apply.Init(cfg.Workers); err != nil {
		return nil, err
	}
	defer apply.Destroy()

	var g errgroup.Group
	for _, rg := range Partition(cfg.Rows, cfg.Workers) {
		g.Go(func() error {
			for range cfg.Iterations {
				compute.Wait()
				p.computeDeltas(rg.Begin, rg.End)
				apply.Wait()
				p.applyDeltas(rg.Begin, rg.End)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// SolveSequential is the single-goroutine reference for Solve. For the
// same Rows, Cols and Iterations it yields a bit-identical plate.
// Workers is ignored.
func SolveSequential(cfg Config) (*Plate, error) {
	cfg.Workers = 1
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := NewPlate(cfg.Rows, cfg.Cols)
	for range cfg.Iterations {
		p.computeDeltas(0, cfg.Rows)
		p.applyDeltas(0, cfg.Rows)
	}
	return p, nil
}
