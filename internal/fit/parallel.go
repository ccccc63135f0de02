package fit

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"
)

// branch is one independent seed of a search.
type branch func(ctx context.Context) (Result, error)

// bestBranch runs the branches on up to workers goroutines and returns the
// lowest-error result; ties go to the lowest index so the outcome does not
// depend on scheduling. Branch failures are collected, not fatal, unless
// none succeeds.
func bestBranch(ctx context.Context, workers int, branches []branch) (Result, error) {
	results := make([]Result, len(branches))
	errs := make([]error, len(branches))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, b := range branches {
		g.Go(func() error {
			results[i], errs[i] = b(ctx)
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	var partial bool
	for i, r := range results {
		if errs[i] != nil {
			if !interrupted(errs[i]) || r.Handle == nil {
				continue
			}
			partial = true
		}
		if r.Handle == nil || math.IsNaN(r.Error) || math.IsInf(r.Error, 1) {
			continue
		}
		if best < 0 || r.Error < results[best].Error {
			best = i
		}
	}
	if best < 0 {
		if err := errors.Join(errs...); err != nil {
			return Result{}, errors.Join(ErrAllBranchesFailed, err)
		}
		return Result{}, ErrAllBranchesFailed
	}
	out := results[best]
	out.Partial = out.Partial || partial
	return out, nil
}
