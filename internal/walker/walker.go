package walker

import (
	"context"
	"fmt"

	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
)

// Lister lists the immediate children of a container
type Lister interface {
	ListChildren(ctx context.Context, containerID string) ([]types.FileEntry, error)
}

// ListerFunc adapts a function to the Lister interface
type ListerFunc func(ctx context.Context, containerID string) ([]types.FileEntry, error)

func (f ListerFunc) ListChildren(ctx context.Context, containerID string) ([]types.FileEntry, error) {
	return f(ctx, containerID)
}

// Result is the flattened inventory produced by Walk
type Result struct {
	Entries []types.FileEntry
	Skipped []types.SkippedSubtree
}

// Option configures a walk
type Option func(*walk)

// WithStrict makes the first listing failure abort the walk
func WithStrict(strict bool) Option {
	return func(w *walk) { w.strict = strict }
}

// WithFatal makes listing failures matching fatal abort the walk even when it is not strict
func WithFatal(fatal func(error) bool) Option {
	return func(w *walk) { w.fatal = fatal }
}

// WithLogger sets the logger used for skipped subtrees
func WithLogger(logger logging.Logger) Option {
	return func(w *walk) {
		if logger != nil {
			w.logger = logger
		}
	}
}

type walk struct {
	lister  Lister
	strict  bool
	fatal   func(error) bool
	logger  logging.Logger
	visited map[string]bool
	result  Result
}

// Walk enumerates every regular entry below rootID depth-first, in listing order.
// A container whose listing fails contributes nothing and is recorded in Result.Skipped
// unless the walk is strict.
func Walk(ctx context.Context, lister Lister, rootID string, opts ...Option) (Result, error) {
	w := &walk{
		lister:  lister,
		logger:  logging.NewNoOpLogger(),
		visited: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.visit(ctx, rootID, 0); err != nil {
		return Result{}, err
	}
	return w.result, nil
}

func (w *walk) visit(ctx context.Context, containerID string, depth int) error {
	if w.visited[containerID] {
		w.logger.Debug("Container already visited", logging.F("containerId", containerID))
		return nil
	}
	w.visited[containerID] = true

	if err := ctx.Err(); err != nil {
		return err
	}

	children, err := w.lister.ListChildren(ctx, containerID)
	if err != nil {
		if w.strict || ctx.Err() != nil || (w.fatal != nil && w.fatal(err)) {
			return fmt.Errorf("listing %s: %w", containerID, err)
		}
		w.logger.Warn("Skipping subtree after listing failure",
			logging.F("containerId", containerID),
			logging.F("depth", depth),
			logging.F("error", err.Error()),
		)
		w.result.Skipped = append(w.result.Skipped, types.SkippedSubtree{
			ContainerID: containerID,
			Error:       err.Error(),
		})
		return nil
	}

	for _, child := range children {
		if child.IsContainer() {
			if err := w.visit(ctx, child.ID, depth+1); err != nil {
				return err
			}
			continue
		}
		w.result.Entries = append(w.result.Entries, child)
	}
	return nil
}
