package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/dl-alexandre/docloader/internal/types"
	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
)

func (p *Pipeline) fetchOne(ctx context.Context, entry types.FileEntry) (res types.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = types.FetchFailure(fmt.Errorf("Download failed: %v", r))
		}
	}()
	return p.backend.Fetch(ctx, entry, p.progress)
}

// runSequential fetches and decodes each entry before moving to the next
func (p *Pipeline) runSequential(ctx context.Context, logger logging.Logger, entries []types.FileEntry, report *types.IngestionReport) {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			p.record(logger, report, fetched{entry: entry, result: types.FetchFailure(err)})
			continue
		}

		logger.Debug("Fetching", logging.F("file", entry.Name), logging.F("index", i+1), logging.F("total", len(entries)))
		res := p.fetchOne(ctx, entry)
		if res.OK {
			logger.Debug("Fetched", logging.F("file", entry.Name), logging.F("size", humanize.Bytes(uint64(len(res.Payload)))))
		}
		p.record(logger, report, fetched{entry: entry, result: res})

		if i < len(entries)-1 && p.opts.InterFilePause > 0 {
			pause(ctx, p.opts.InterFilePause)
		}
	}
}

// fetchParallel fetches every entry through a bounded pool and returns
// the results in completion order
func (p *Pipeline) fetchParallel(ctx context.Context, logger logging.Logger, entries []types.FileEntry) []fetched {
	results := make(chan fetched, len(entries))

	size := p.opts.poolSize(len(entries))
	pool, err := ants.NewPool(size)
	if err != nil {
		logger.Warn("Worker pool unavailable, fetching sequentially", logging.F("error", err.Error()))
		out := make([]fetched, 0, len(entries))
		for _, entry := range entries {
			out = append(out, fetched{entry: entry, result: p.fetchOne(ctx, entry)})
		}
		return out
	}
	defer pool.Release()

	logger.Debug("Parallel fetch started", logging.F("workers", size), logging.F("files", len(entries)))

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results <- fetched{entry: entry, result: p.fetchOne(ctx, entry)}
		})
		if submitErr != nil {
			wg.Done()
			results <- fetched{entry: entry, result: types.FetchFailure(fmt.Errorf("Download failed: %w", submitErr))}
		}
	}
	wg.Wait()
	close(results)

	out := make([]fetched, 0, len(entries))
	for f := range results {
		out = append(out, f)
	}
	return out
}

func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
