package ingest

import (
	"sort"
	"strings"
	"sync"
)

// WatchList is a concurrency-safe string set. An empty list allows
// everything.
type WatchList struct {
	mu       sync.RWMutex
	items    map[string]struct{}
	foldCase bool
}

// NewWatchList creates a case-sensitive list, used for mint addresses.
func NewWatchList(items []string) *WatchList {
	w := &WatchList{items: make(map[string]struct{}, len(items))}
	w.Add(items...)
	return w
}

// NewSourceList creates a case-insensitive list, used for marketplace names.
func NewSourceList(items []string) *WatchList {
	w := &WatchList{items: make(map[string]struct{}, len(items)), foldCase: true}
	w.Add(items...)
	return w
}

// Add inserts items and returns how many were new.
func (w *WatchList) Add(items ...string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	added := 0
	for _, item := range items {
		item = w.normalize(item)
		if item == "" {
			continue
		}
		if _, ok := w.items[item]; !ok {
			w.items[item] = struct{}{}
			added++
		}
	}
	return added
}

// Allows reports whether item passes the filter.
func (w *WatchList) Allows(item string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.items) == 0 {
		return true
	}
	_, ok := w.items[w.normalize(item)]
	return ok
}

// Contains reports strict membership.
func (w *WatchList) Contains(item string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.items[w.normalize(item)]
	return ok
}

// Len returns the number of items.
func (w *WatchList) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.items)
}

// Sorted returns the items in lexical order.
func (w *WatchList) Sorted() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.items))
	for item := range w.items {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// First returns the lexically smallest item, or "".
func (w *WatchList) First() string {
	sorted := w.Sorted()
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}

func (w *WatchList) normalize(item string) string {
	item = strings.TrimSpace(item)
	if w.foldCase {
		item = strings.ToLower(item)
	}
	return item
}
