package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sweep kills and removes every container on the engine whose name has the
// form "<prefix>-<n>", whether or not a live Manager tracks it. It recovers
// from runs that exited without calling ShutdownAll.
func Sweep(ctx context.Context, engine Engine, prefix string, concurrency int) (ShutdownReport, error) {
	if prefix == "" {
		return ShutdownReport{}, errors.New("refusing to sweep without a container name prefix")
	}
	if concurrency <= 0 {
		concurrency = DefaultShutdownConcurrency
	}

	containers, err := engine.ListContainers(ctx, true)
	if err != nil {
		return ShutdownReport{}, fmt.Errorf("failed to list containers for prefix %q: %w", prefix, err)
	}

	var ids []string
	for _, c := range containers {
		if ownedBy(c.Name, prefix) {
			ids = append(ids, c.ID)
		}
	}

	return ShutdownReport{Results: teardownAll(ctx, engine, ids, concurrency)}, nil
}

func ownedBy(name, prefix string) bool {
	index, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return false
	}

	_, err := strconv.ParseUint(index, 10, 64)
	return err == nil
}

// teardownAll kills then removes each container, at most concurrency at a
// time. A failure on one container never affects another.
func teardownAll(ctx context.Context, engine Engine, ids []string, concurrency int) []ShutdownResult {
	results := make([]ShutdownResult, len(ids))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = teardown(ctx, engine, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func teardown(ctx context.Context, engine Engine, id string) ShutdownResult {
	result := ShutdownResult{ID: id}

	result.KillErr = engine.KillContainer(ctx, id)
	result.Killed = result.KillErr == nil

	result.RemoveErr = engine.RemoveContainer(ctx, id)
	result.Removed = result.RemoveErr == nil

	return result
}
