// Package scenario implements the stress scenarios run by the driver.
// Each one owns its barrier and recording context, so scenarios can run
// side by side.
package scenario

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/threadproj/barrier"
	"github.com/threadproj/barrier/internal/heat"
	"github.com/threadproj/barrier/internal/trace"
)

// Config sizes the ordering scenarios.
type Config struct {
	Workers int
	Tries   int
}

// DefaultConfig returns 10 workers and 50 tries.
func DefaultConfig() Config {
	return Config{Workers: 10, Tries: 50}
}

// SingleRound passes cfg.Workers goroutines through a fresh barrier once
// per try. Each goroutine records its id before and after waiting; the
// ids of every try are appended to w.
func SingleRound(ctx context.Context, cfg Config, w io.Writer) error {
	for try := range cfg.Tries {
		if err := ctx.Err(); err != nil {
			return err
		}
		var b barrier.Barrier
		if err := b.Init(cfg.Workers); err != nil {
			return fmt.Errorf("single round try %d: %w", try, err)
		}
		ids, err := passOnce(&b, cfg.Workers)
		b.Destroy()
		if err != nil {
			return fmt.Errorf("single round try %d: %w", try, err)
		}
		if err := trace.WriteIDs(w, ids); err != nil {
			return fmt.Errorf("single round try %d: write: %w", try, err)
		}
	}
	return nil
}

// Reuse is SingleRound with one barrier shared by every try, destroyed
// only after the last.
func Reuse(ctx context.Context, cfg Config, w io.Writer) error {
	b, err := barrier.New(cfg.Workers)
	if err != nil {
		return fmt.Errorf("reuse: %w", err)
	}
	defer b.Destroy()

	for try := range cfg.Tries {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := passOnce(b, cfg.Workers)
		if err != nil {
			return fmt.Errorf("reuse try %d: %w", try, err)
		}
		if err := trace.WriteIDs(w, ids); err != nil {
			return fmt.Errorf("reuse try %d: write: %w", try, err)
		}
	}
	if gen := b.Generation(); gen != uint64(cfg.Tries) {
		return fmt.Errorf("reuse: barrier completed %d rounds, want %d", gen, cfg.Tries)
	}
	return nil
}

// passOnce runs one round of workers through b and returns the recorded
// ids: arrivals first, then departures if the barrier is correct.
func passOnce(b *barrier.Barrier, workers int) ([]int, error) {
	rec := trace.NewRecorder(2 * workers)
	var g errgroup.Group
	for id := range workers {
		g.Go(func() error {
			rec.Record(0, id, trace.Arrived)
			b.Wait()
			rec.Record(0, id, trace.Departed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, kind := range []trace.Kind{trace.Arrived, trace.Departed} {
		if n := rec.Count(0, kind); n != workers {
			return nil, fmt.Errorf("%d workers %v, want %d", n, kind, workers)
		}
	}
	return rec.IDs(), nil
}

// Laplace solves the heat plate described by cfg, writes it to w and
// returns its digest.
func Laplace(ctx context.Context, cfg heat.Config, w io.Writer) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, err := heat.Solve(cfg)
	if err != nil {
		return 0, fmt.Errorf("laplace: %w", err)
	}
	if _, err := p.WriteTo(w); err != nil {
		return 0, fmt.Errorf("laplace: write: %w", err)
	}
	return p.Digest(), nil
}
