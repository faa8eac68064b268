package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-realtime/core/guardrail"
)

// Store holds the ordered transcript: conversation items and breadcrumbs
// interleaved in arrival order. It is safe for concurrent use; mutation
// callbacks run under the store lock and must not call back into the store.
type Store struct {
	mu sync.RWMutex

	entries   []Entry
	items     map[string]*Item
	sequences map[string]uint64
	sequence  uint64

	now   func() time.Time
	newID func() string
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		items:     map[string]*Item{},
		sequences: map[string]uint64{},
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert applies mutate to the item with itemID, creating it with role when
// it does not exist yet. mutate reports whether it changed the item; a new
// item is only inserted when mutate accepts it.
func (s *Store) Upsert(itemID string, role Role, mutate func(item *Item, created bool) bool) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if item, ok := s.items[itemID]; ok {
		if !mutate(item, false) {
			return item.clone(), false
		}
		item.UpdatedAt = now
		return item.clone(), true
	}

	item := &Item{ItemID: itemID, Role: role, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if !mutate(item, true) {
		return Item{}, false
	}

	s.sequence++
	s.items[itemID] = item
	s.sequences[itemID] = s.sequence
	s.entries = append(s.entries, Entry{Kind: EntryMessage, Item: item})
	return item.clone(), true
}

// Update applies mutate to an existing item only.
func (s *Store) Update(itemID string, mutate func(item *Item) bool) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || !mutate(item) {
		return Item{}, false
	}
	item.UpdatedAt = s.now()
	return item.clone(), true
}

func (s *Store) Item(itemID string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return Item{}, false
	}
	return item.clone(), true
}

func (s *Store) Has(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[itemID]
	return ok
}

// AddBreadcrumb appends an annotation. Breadcrumbs have no update path.
func (s *Store) AddBreadcrumb(title string, data any) Breadcrumb {
	s.mu.Lock()
	defer s.mu.Unlock()

	breadcrumb := &Breadcrumb{ID: s.newID(), Title: title, Data: data, CreatedAt: s.now()}
	s.entries = append(s.entries, Entry{Kind: EntryBreadcrumb, Breadcrumb: breadcrumb})
	return *breadcrumb
}

// Snapshot returns a deep copy of the transcript in order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, entry.clone())
	}
	return snapshot
}

func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.items))
	for _, entry := range s.entries {
		if entry.Kind == EntryMessage {
			items = append(items, entry.Item.clone())
		}
	}
	return items
}

func (s *Store) Breadcrumbs() []Breadcrumb {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var breadcrumbs []Breadcrumb
	for _, entry := range s.entries {
		if entry.Kind == EntryBreadcrumb {
			breadcrumbs = append(breadcrumbs, *entry.Breadcrumb)
		}
	}
	return breadcrumbs
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.items = map[string]*Item{}
	s.sequences = map[string]uint64{}
	s.sequence = 0
}

func (s *Store) GuardrailCandidates() []guardrail.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []guardrail.Candidate
	for _, entry := range s.entries {
		if entry.Kind != EntryMessage || entry.Item.Role != RoleAssistant {
			continue
		}
		item := entry.Item.clone()
		candidates = append(candidates, guardrail.Candidate{
			ItemID:    item.ItemID,
			CreatedAt: item.CreatedAt,
			Sequence:  s.sequences[item.ItemID],
			Result:    item.Guardrail,
		})
	}
	return candidates
}

func (s *Store) UpdateGuardrail(itemID string, update func(current *guardrail.Result) *guardrail.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.Role != RoleAssistant {
		return false
	}
	item.Guardrail = update(item.Guardrail)
	item.UpdatedAt = s.now()
	return true
}

func (e Entry) clone() Entry {
	if e.Item != nil {
		item := e.Item.clone()
		e.Item = &item
	}
	if e.Breadcrumb != nil {
		breadcrumb := *e.Breadcrumb
		e.Breadcrumb = &breadcrumb
	}
	return e
}
