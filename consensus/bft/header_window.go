package bft

import (
	"fmt"

	"github.com/dposnet/bft-core/model/chain"
)

// HeaderWindow is a bounded, height-contiguous buffer of block headers.
// Headers are stored in ascending height order so that the header at height
// h lives at index h - MinHeight().
//
// HeaderWindow is NOT concurrency safe; FinalityEngine serializes access.
type HeaderWindow struct {
	capacity int
	headers  []*chain.BlockHeader
}

// NewHeaderWindow creates an empty window holding at most capacity headers.
func NewHeaderWindow(capacity int) *HeaderWindow {
	return &HeaderWindow{
		capacity: capacity,
		headers:  make([]*chain.BlockHeader, 0, capacity+1),
	}
}

// Add inserts the header directly below the lowest or directly above the
// highest header of the window. If the window overflows, the header at the
// opposite end is evicted and returned.
// Expected errors during normal operations:
//   - NonContiguousHeaderError if the header does not touch either end;
//     the window is unchanged in that case.
func (w *HeaderWindow) Add(header *chain.BlockHeader) (*chain.BlockHeader, error) {
	if len(w.headers) == 0 {
		w.headers = append(w.headers, header)
		return nil, nil
	}

	first := w.headers[0].Height
	last := w.headers[len(w.headers)-1].Height
	switch {
	case header.Height == last+1:
		w.headers = append(w.headers, header)
		if len(w.headers) > w.capacity {
			evicted := w.headers[0]
			w.headers[0] = nil
			w.headers = w.headers[1:]
			return evicted, nil
		}
	case first > 0 && header.Height == first-1:
		w.headers = append(w.headers, nil)
		copy(w.headers[1:], w.headers)
		w.headers[0] = header
		if len(w.headers) > w.capacity {
			evicted := w.headers[len(w.headers)-1]
			w.headers = w.headers[:len(w.headers)-1]
			return evicted, nil
		}
	default:
		return nil, NonContiguousHeaderError{Height: header.Height, MinHeight: first, MaxHeight: last}
	}
	return nil, nil
}

// RemoveAbove drops every header above the given height and returns the
// removed headers in ascending order.
func (w *HeaderWindow) RemoveAbove(height uint64) []*chain.BlockHeader {
	cut := len(w.headers)
	for cut > 0 && w.headers[cut-1].Height > height {
		cut--
	}
	removed := make([]*chain.BlockHeader, len(w.headers)-cut)
	copy(removed, w.headers[cut:])
	for i := cut; i < len(w.headers); i++ {
		w.headers[i] = nil
	}
	w.headers = w.headers[:cut]
	return removed
}

// Top returns the n highest headers in ascending order. If the window holds
// fewer than n headers, all of them are returned.
func (w *HeaderWindow) Top(n int) ([]*chain.BlockHeader, error) {
	if n > w.capacity {
		return nil, fmt.Errorf("requested %d headers from window of capacity %d", n, w.capacity)
	}
	if n > len(w.headers) {
		n = len(w.headers)
	}
	top := make([]*chain.BlockHeader, n)
	copy(top, w.headers[len(w.headers)-n:])
	return top, nil
}

// Clear empties the window and returns its previous contents.
func (w *HeaderWindow) Clear() []*chain.BlockHeader {
	prior := w.headers
	w.headers = make([]*chain.BlockHeader, 0, w.capacity+1)
	return prior
}

// ByHeight returns the header at the given height, if the window holds it.
func (w *HeaderWindow) ByHeight(height uint64) (*chain.BlockHeader, bool) {
	if len(w.headers) == 0 || height < w.headers[0].Height {
		return nil, false
	}
	idx := height - w.headers[0].Height
	if idx >= uint64(len(w.headers)) {
		return nil, false
	}
	return w.headers[idx], true
}

// MinHeight returns the lowest height in the window, or zero if empty.
func (w *HeaderWindow) MinHeight() uint64 {
	if len(w.headers) == 0 {
		return 0
	}
	return w.headers[0].Height
}

// MaxHeight returns the highest height in the window, or zero if empty.
func (w *HeaderWindow) MaxHeight() uint64 {
	if len(w.headers) == 0 {
		return 0
	}
	return w.headers[len(w.headers)-1].Height
}

// Last returns the highest header of the window.
func (w *HeaderWindow) Last() (*chain.BlockHeader, bool) {
	if len(w.headers) == 0 {
		return nil, false
	}
	return w.headers[len(w.headers)-1], true
}

func (w *HeaderWindow) Len() int {
	return len(w.headers)
}

func (w *HeaderWindow) Capacity() int {
	return w.capacity
}

// Items returns a copy of the window contents in ascending order.
func (w *HeaderWindow) Items() []*chain.BlockHeader {
	items := make([]*chain.BlockHeader, len(w.headers))
	copy(items, w.headers)
	return items
}

// restore replaces the window contents. It is used to undo a failed
// admission.
func (w *HeaderWindow) restore(headers []*chain.BlockHeader) {
	w.headers = append(w.headers[:0], headers...)
}
