package embedding

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultBatchSize is used when EmbedBatch is called with a non-positive
// batch size.
const DefaultBatchSize = 5

// EmbedBatch embeds texts in chunks of batchSize.
//
// Within a chunk, calls run concurrently; call i of the chunk waits
// i*Stagger before starting so the burst is smoothed against the service's
// rate limiter. Between chunks a fixed BatchDelay is inserted. Execution
// across chunks is strictly sequential.
//
// A failure on one text never aborts the batch: it is recorded with the
// text's index and message, and EmbedBatch returns however many vectors
// succeeded plus the accumulated error list, both ordered by input index.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([]BatchItem, []BatchError) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		mu    sync.Mutex
		items []BatchItem
		errs  []BatchError
	)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		if start > 0 {
			c.sleep(ctx, c.cfg.BatchDelay)
		}

		var wg sync.WaitGroup
		for i, text := range texts[start:end] {
			wg.Add(1)
			go func(offset int, text string) {
				defer wg.Done()

				if offset > 0 {
					c.sleep(ctx, time.Duration(offset)*c.cfg.Stagger)
				}

				index := start + offset
				vector, err := c.Embed(ctx, text, PurposeStore)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, BatchError{Index: index, Message: err.Error()})
					return
				}
				items = append(items, BatchItem{Index: index, Vector: vector})
			}(i, text)
		}
		wg.Wait()
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })

	c.logger.Debug("embed batch complete",
		"texts", len(texts), "succeeded", len(items), "failed", len(errs))
	return items, errs
}

// sleep waits for d or until the context is done, whichever comes first.
func (c *Client) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
