package reconcile

import (
	"container/heap"

	"github.com/sudhir1041/nursery-orders/internal/orders"
)

// Merge combines per-source streams that are each sorted newest first into one
// stream sorted newest first. Views without a date are dropped. Ties on date
// order by source rank, then by row id descending, matching the repository's
// cursor conditions.
func Merge(streams ...[]UnifiedOrderView) []UnifiedOrderView {
	h := &viewHeap{}
	total := 0
	for _, s := range streams {
		total += len(s)
		if next := skipUndated(s, 0); next < len(s) {
			h.items = append(h.items, heapItem{stream: s, pos: next})
		}
	}
	heap.Init(h)

	out := make([]UnifiedOrderView, 0, total)
	for h.Len() > 0 {
		top := &h.items[0]
		out = append(out, top.stream[top.pos])
		top.pos = skipUndated(top.stream, top.pos+1)
		if top.pos >= len(top.stream) {
			heap.Pop(h)
			continue
		}
		heap.Fix(h, 0)
	}
	return out
}

func skipUndated(s []UnifiedOrderView, pos int) int {
	for pos < len(s) && (s[pos].Date == nil || s[pos].Date.IsZero()) {
		pos++
	}
	return pos
}

// newer reports whether a sorts before b in the merged stream.
func newer(a, b UnifiedOrderView) bool {
	if !a.Date.Equal(*b.Date) {
		return a.Date.After(*b.Date)
	}
	ra, rb := orders.SourceRank(a.Source), orders.SourceRank(b.Source)
	if ra != rb {
		return ra < rb
	}
	return a.RowID.String() > b.RowID.String()
}

type heapItem struct {
	stream []UnifiedOrderView
	pos    int
}

type viewHeap struct {
	items []heapItem
}

func (h *viewHeap) Len() int { return len(h.items) }

func (h *viewHeap) Less(i, j int) bool {
	return newer(h.items[i].stream[h.items[i].pos], h.items[j].stream[h.items[j].pos])
}

func (h *viewHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *viewHeap) Push(x any) { h.items = append(h.items, x.(heapItem)) }

func (h *viewHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}
