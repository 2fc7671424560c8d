package watcher

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/resc/api/v1beta1/configs"
)

// NewClient creates a Redis client from a redis:// or rediss:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %w", ErrRedis, err)
	}

	return redis.NewClient(opts), nil
}

// Runner runs one [Watcher] per configured input queue.
type Runner struct {
	watchers []*Watcher
}

// NewRunner builds the watchers declared by cfg. The listener channel of cfg
// is applied before opts.
func NewRunner(client redis.UniversalClient, cfg *configs.Config, opts ...Opt) (*Runner, error) {
	sets, err := cfg.Sets()
	if err != nil {
		return nil, fmt.Errorf("build rules: %w", err)
	}

	wopts := append([]Opt{WithChannel(cfg.ListenerChannel)}, opts...)

	r := &Runner{watchers: make([]*Watcher, 0, len(sets))}
	for i, set := range sets {
		wc := cfg.Watchers[i]
		r.watchers = append(r.watchers, New(client, wc.InputQueue, wc.TakenQueue, set, wopts...))
	}

	return r, nil
}

// Watchers returns the watchers in configuration order.
func (r *Runner) Watchers() []*Watcher {
	return r.watchers
}

// Run runs every watcher until ctx is canceled or one of them fails.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.watchers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("run watchers: %w", err)
	}

	return nil
}
