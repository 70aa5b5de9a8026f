package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// maxParallelReads bounds concurrent input reads.
const maxParallelReads = 8

// readFiles reads every path concurrently and returns the contents in
// argument order.
func readFiles(ctx context.Context, paths ...string) ([]string, error) {
	texts := make([]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			texts[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
