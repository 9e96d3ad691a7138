package accesslog

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoInput is returned by AnalyzeFiles when no paths are given.
var ErrNoInput = errors.New("no access log paths given")

// AnalyzeFile reads one access log and returns its summary. Any open or read
// failure aborts the analysis; no partial summary is returned.
func AnalyzeFile(ctx context.Context, path string, topN int) (*Summary, error) {
	return AnalyzeFiles(ctx, []string{path}, topN)
}

// AnalyzeFiles reads the given access logs one after another into a single
// aggregation, so first-seen tie-breaks follow the order of paths.
func AnalyzeFiles(ctx context.Context, paths []string, topN int) (*Summary, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	agg := NewAggregator()
	for _, path := range paths {
		if err := consume(ctx, path, agg); err != nil {
			return nil, err
		}
	}

	return agg.Summary(topN), nil
}

// consume streams every line of path into agg.
func consume(ctx context.Context, path string, agg *Aggregator) (err error) {
	src, err := OpenLines(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	for src.Scan() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("analysis of %s interrupted: %w", path, err)
		}
		agg.AddLine(src.Text())
	}

	if err := src.Err(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
