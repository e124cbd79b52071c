// Command barriertest runs the barrier stress scenarios and writes their
// artifacts for external verification.
//
//	-sbt  single-use barrier test  -> sbt_out.txt
//	-brt  barrier re-use test      -> brt_out.txt
//	-app  heat plate application   -> laplace_out.txt
//	-all  all of the above
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash"
	"golang.org/x/sync/errgroup"

	"github.com/threadproj/barrier/internal/heat"
	"github.com/threadproj/barrier/internal/scenario"
	"github.com/threadproj/barrier/internal/trace"
)

const (
	sbtFile = "sbt_out.txt"
	brtFile = "brt_out.txt"
	appFile = "laplace_out.txt"
)

const usage = `To run programs add command line options to enable running programs:
-sbt	Run the Single Use Barrier Test - runs the workers through a barrier once and checks they stop and wait for each other.
-brt	Run the Barrier Re-use Test - same as above, but every try reuses one barrier.
-app	Run the Heat Plate Application Test - full two-barrier workload.
-all	Run all of the tests.
`

type options struct {
	sbt, brt, app bool
	dir           string
	verify        bool
	reference     string
	order         scenario.Config
	plate         heat.Config
}

func main() {
	var opts options
	var all bool
	opts.order = scenario.DefaultConfig()
	opts.plate = heat.DefaultConfig()

	flag.BoolVar(&opts.sbt, "sbt", false, "run the single-use barrier test")
	flag.BoolVar(&opts.brt, "brt", false, "run the barrier re-use test")
	flag.BoolVar(&opts.app, "app", false, "run the heat plate application test")
	flag.BoolVar(&all, "all", false, "run all tests")
	flag.StringVar(&opts.dir, "dir", ".", "output directory")
	flag.BoolVar(&opts.verify, "verify", false, "check the artifacts after running")
	flag.StringVar(&opts.reference, "reference", "", "known-correct laplace output to verify against")
	flag.IntVar(&opts.order.Workers, "workers", opts.order.Workers, "workers for -sbt and -brt")
	flag.IntVar(&opts.order.Tries, "tries", opts.order.Tries, "tries for -sbt and -brt")
	flag.IntVar(&opts.plate.Workers, "plate-workers", opts.plate.Workers, "workers for -app")
	flag.IntVar(&opts.plate.Iterations, "iterations", opts.plate.Iterations, "iterations for -app")
	flag.Parse()

	if all {
		opts.sbt, opts.brt, opts.app = true, true, true
	}
	if !opts.sbt && !opts.brt && !opts.app {
		fmt.Print(usage)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), logger, opts); err != nil {
		logger.Error("barriertest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	g, ctx := errgroup.WithContext(ctx)
	if opts.sbt {
		g.Go(func() error {
			return writeArtifact(filepath.Join(opts.dir, sbtFile), func(w io.Writer) error {
				return scenario.SingleRound(ctx, opts.order, w)
			})
		})
	}
	if opts.brt {
		g.Go(func() error {
			return writeArtifact(filepath.Join(opts.dir, brtFile), func(w io.Writer) error {
				return scenario.Reuse(ctx, opts.order, w)
			})
		})
	}
	if opts.app {
		g.Go(func() error {
			return writeArtifact(filepath.Join(opts.dir, appFile), func(w io.Writer) error {
				digest, err := scenario.Laplace(ctx, opts.plate, w)
				if err == nil {
					logger.Info("plate solved", "digest", fmt.Sprintf("%016x", digest))
				}
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("scenarios finished", "dir", opts.dir)

	if !opts.verify {
		return nil
	}
	return verify(logger, opts)
}

// writeArtifact creates path and fills it with fn.
func writeArtifact(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return bw.Flush()
}

func verify(logger *slog.Logger, opts options) error {
	var errs []error
	report := func(name string, err error) {
		if err != nil {
			logger.Error("check failed", "test", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		logger.Info("check passed", "test", name)
	}

	if opts.sbt {
		report("sbt", checkOrderingFile(filepath.Join(opts.dir, sbtFile), opts.order.Workers))
	}
	if opts.brt {
		report("brt", checkOrderingFile(filepath.Join(opts.dir, brtFile), opts.order.Workers))
	}
	if opts.app {
		report("app", checkPlateFile(filepath.Join(opts.dir, appFile), opts.reference, opts.plate))
	}
	return errors.Join(errs...)
}

func checkOrderingFile(path string, workers int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ids, err := trace.ParseIDs(f)
	if err != nil {
		return err
	}
	return trace.CheckOrdering(ids, workers)
}

// checkPlateFile compares the plate artifact against reference, or
// against a sequential solve when no reference file is given.
func checkPlateFile(path, reference string, cfg heat.Config) error {
	got, err := fileDigest(path)
	if err != nil {
		return err
	}
	var want uint64
	if reference != "" {
		if want, err = fileDigest(reference); err != nil {
			return err
		}
	} else {
		p, err := heat.SolveSequential(cfg)
		if err != nil {
			return err
		}
		want = p.Digest()
	}
	if got != want {
		return fmt.Errorf("plate digest %016x, want %016x", got, want)
	}
	return nil
}

func fileDigest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("digest %s: %w", path, err)
	}
	return h.Sum64(), nil
}
