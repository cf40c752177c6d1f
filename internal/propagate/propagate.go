package propagate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

type options struct {
	workers  int
	validate bool
	logger   *slog.Logger
}

// Option configures Propagate.
type Option func(*options)

// WithWorkers processes rows in n parallel chunks. Values below 2 run the
// pass sequentially.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithoutValidation skips Validate. Malformed tables then produce undefined
// (but non-panicking) output.
func WithoutValidation() Option {
	return func(o *options) { o.validate = false }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Stats summarizes a propagation pass.
type Stats struct {
	Rows      int `json:"rows" yaml:"rows"`
	Overrides int `json:"overrides" yaml:"overrides"`
	Rescaled  int `json:"rescaled" yaml:"rescaled"`
	Unchanged int `json:"unchanged" yaml:"unchanged"`
}

// Result is the output of Propagate.
type Result struct {
	Table       Table        `json:"table" yaml:"table"`
	Resolutions []Resolution `json:"resolutions" yaml:"resolutions"`
	Stats       Stats        `json:"stats" yaml:"stats"`
}

// Propagate returns a new table whose values are rescaled by the nearest
// override on each row's path. The input table is not modified. Row order,
// ids, overrides and lineages are carried over unchanged.
func Propagate(ctx context.Context, t Table, opts ...Option) (*Result, error) {
	o := options{
		workers:  1,
		validate: true,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.validate {
		if err := Validate(t); err != nil {
			return nil, err
		}
	}

	r := NewResolver(t)
	n := len(t.Nodes)
	out := make([]Node, n)
	resolutions := make([]Resolution, n)

	apply := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			src := t.Nodes[i]
			res := r.Resolve(src)
			resolutions[i] = res
			out[i] = src.Clone()
			out[i].Value = res.Value
		}
	}

	workers := min(o.workers, n)
	if workers < 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		apply(0, n)
	} else {
		chunk := (n + workers - 1) / workers
		g, gctx := errgroup.WithContext(ctx)
		for lo := 0; lo < n; lo += chunk {
			hi := min(lo+chunk, n)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				apply(lo, hi)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	stats := Stats{Rows: n, Overrides: len(r.overrides)}
	for _, res := range resolutions {
		if res.Anchored() {
			stats.Rescaled++
		} else {
			stats.Unchanged++
		}
	}

	o.logger.Debug("propagated overrides",
		slog.Int("rows", stats.Rows),
		slog.Int("overrides", stats.Overrides),
		slog.Int("rescaled", stats.Rescaled),
		slog.Int("workers", max(workers, 1)),
	)

	return &Result{
		Table:       Table{Nodes: out},
		Resolutions: resolutions,
		Stats:       stats,
	}, nil
}

// Apply is Propagate with default options and no context.
func Apply(t Table) (Table, error) {
	res, err := Propagate(context.Background(), t)
	if err != nil {
		return Table{}, err
	}
	return res.Table, nil
}
