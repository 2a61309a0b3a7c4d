// Package split holds the batch splitters shared by the fetch pipelines.
// Splitters never emit an empty batch, and concatenating their output yields
// the input unchanged.
package split

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// SysIDs splits ids into up to three roughly equal groups so a page can
// saturate the typical worker pool without overcommitting it. No group
// exceeds max.
func SysIDs[T any](ids []T, max int) [][]T {
	if len(ids) == 0 {
		return nil
	}
	size := (len(ids) + 2) / 3
	if size > max {
		size = max
	}
	if size < 1 {
		size = 1
	}

	out := make([][]T, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end:end])
	}
	return out
}

// SeriesAttributes packs items into batches bounded by both an item count
// and a total UTF-8 byte budget over each item's path. Packing is greedy and
// preserves input order. An item whose path alone exceeds the byte budget is
// emitted as a singleton batch and logged, so one absurd attribute name
// cannot wedge the whole fetch.
func SeriesAttributes[T any](logger log.Logger, items []T, path func(T) string, maxItems, maxBytes int) [][]T {
	if maxItems < 1 {
		maxItems = 1
	}

	var (
		out      [][]T
		batch    []T
		batchLen int
	)
	for _, item := range items {
		n := len(path(item))
		if n > maxBytes {
			if len(batch) > 0 {
				out = append(out, batch)
				batch, batchLen = nil, 0
			}
			level.Warn(logger).Log("msg", "attribute name exceeds the query size limit, requesting it alone", "attribute", path(item), "bytes", n, "limit", maxBytes)
			out = append(out, []T{item})
			continue
		}
		if len(batch) >= maxItems || batchLen+n > maxBytes {
			out = append(out, batch)
			batch, batchLen = nil, 0
		}
		batch = append(batch, item)
		batchLen += n
	}
	if len(batch) > 0 {
		out = append(out, batch)
	}
	return out
}
