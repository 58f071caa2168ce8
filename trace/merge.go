package trace

import (
	"container/heap"

	"github.com/ajdavis/mongo-space-time/wire"
)

// Merge combines the sources into one sequence ordered by sort key, using a
// K-way priority-queue merge seeded with one head element per source. Each
// source must itself be ordered; ties across sources break arbitrarily.
func Merge(sources ...wire.Source) wire.Source {
	m := &merged{}
	for _, src := range sources {
		if msg := src.Next(); msg != nil {
			m.heads = append(m.heads, head{msg: msg, src: src})
		}
	}
	heap.Init(&m.heads)
	return m
}

type head struct {
	msg *wire.MongoMessage
	src wire.Source
}

type headHeap []head

func (h headHeap) Len() int            { return len(h) }
func (h headHeap) Less(i, j int) bool  { return h[i].msg.SortKey.Less(h[j].msg.SortKey) }
func (h headHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *headHeap) Push(x interface{}) { *h = append(*h, x.(head)) }
func (h *headHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type merged struct {
	heads headHeap
}

func (m *merged) Next() *wire.MongoMessage {
	if len(m.heads) == 0 {
		return nil
	}
	msg := m.heads[0].msg
	if next := m.heads[0].src.Next(); next != nil {
		m.heads[0].msg = next
		heap.Fix(&m.heads, 0)
	} else {
		heap.Pop(&m.heads)
	}
	return msg
}
