package tools

import "sync"

// CallRecord remembers which tool calls have been observed. Keys are only
// ever added; Reset is reserved for a full session reset.
type CallRecord struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewCallRecord() *CallRecord {
	return &CallRecord{seen: map[string]struct{}{}}
}

// Mark records key and reports whether this was its first observation.
func (r *CallRecord) Mark(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

func (r *CallRecord) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.seen[key]
	return ok
}

func (r *CallRecord) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *CallRecord) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = map[string]struct{}{}
}
