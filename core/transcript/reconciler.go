package transcript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/guardrail"
)

// UserPlaceholder stands in for user speech whose transcription has not
// arrived yet.
const UserPlaceholder = "Transcribing…"

// ErrDiscarded is returned for events that carry nothing the transcript can
// use. Discards never mutate the store.
var ErrDiscarded = errors.New("event discarded")

// Reconciler folds inbound session events into a [Store]. It is not safe for
// concurrent use; events must be applied from a single goroutine in arrival
// order.
type Reconciler struct {
	store     *Store
	guardrail *guardrail.Tracker

	// aliases maps external item and response ids onto the canonical key
	// used in the store.
	aliases map[string]string
}

func NewReconciler(store *Store, tracker *guardrail.Tracker) *Reconciler {
	if tracker == nil {
		tracker = guardrail.NewTracker(store)
	}
	return &Reconciler{store: store, guardrail: tracker, aliases: map[string]string{}}
}

// Apply reconciles a single event and returns the ids of the items it
// changed. Events outside the transcript's concern are ignored.
func (r *Reconciler) Apply(event events.Event) ([]string, error) {
	switch e := event.(type) {
	case events.AssistantTranscriptDelta:
		return r.assistantDelta(e)
	case events.UserSpeechStarted:
		return r.userSpeechStarted(e)
	case events.UserTranscriptDelta:
		return r.userDelta(e)
	case events.UserTranscriptCompleted:
		return r.userCompleted(e)
	case events.GuardrailTripped:
		if itemID, ok := r.guardrail.Trip(e.Rationale); ok {
			return []string{itemID}, nil
		}
		return nil, nil
	case events.ResponseDone:
		if itemID, ok := r.guardrail.TurnDone(); ok {
			return []string{itemID}, nil
		}
		return nil, nil
	case events.HistoryItemAdded:
		return r.history(e.Item)
	case events.HistoryUpdated:
		var (
			changed []string
			errs    error
		)
		for _, item := range e.Items {
			ids, err := r.history(item)
			changed = append(changed, ids...)
			if err != nil && !errors.Is(err, ErrDiscarded) {
				errs = errors.Join(errs, err)
			}
		}
		return changed, errs
	}
	return nil, nil
}

// AddSimulatedUserMessage records a user message sent on the user's behalf.
// It is kept hidden so it orders the conversation without being rendered.
func (r *Reconciler) AddSimulatedUserMessage(itemID, text string) (Item, bool) {
	return r.store.Upsert(r.resolve(itemID), RoleUser, func(item *Item, created bool) bool {
		if !created {
			return false
		}
		item.Text = text
		item.Hidden = true
		item.Status = StatusDone
		return true
	})
}

// Reset forgets key aliases. The store is reset separately.
func (r *Reconciler) Reset() {
	r.aliases = map[string]string{}
}

func (r *Reconciler) assistantDelta(e events.AssistantTranscriptDelta) ([]string, error) {
	if e.Delta == "" {
		return nil, fmt.Errorf("%w: empty assistant delta", ErrDiscarded)
	}
	key := r.assistantKey(e.ItemID, e.ResponseID)
	if key == "" {
		return nil, fmt.Errorf("%w: assistant delta without id", ErrDiscarded)
	}

	discarded := false
	_, changed := r.store.Upsert(key, RoleAssistant, func(item *Item, created bool) bool {
		if item.IsDone() {
			discarded = true
			return false
		}
		item.Text += e.Delta
		item.Status = item.Status.advance(StatusInProgress)
		return true
	})
	if discarded {
		return nil, fmt.Errorf("%w: delta for finished item %s", ErrDiscarded, key)
	}
	if !changed {
		return nil, nil
	}
	r.guardrail.Begin(key)
	return []string{key}, nil
}

func (r *Reconciler) userSpeechStarted(e events.UserSpeechStarted) ([]string, error) {
	if e.ItemID == "" {
		return nil, fmt.Errorf("%w: speech start without id", ErrDiscarded)
	}

	key := r.resolve(e.ItemID)
	if _, created := r.store.Upsert(key, RoleUser, func(item *Item, created bool) bool {
		if !created {
			return false
		}
		item.Text = UserPlaceholder
		item.Placeholder = true
		item.Status = StatusInProgress
		return true
	}); !created {
		return nil, nil
	}
	return []string{key}, nil
}

func (r *Reconciler) userDelta(e events.UserTranscriptDelta) ([]string, error) {
	if e.ItemID == "" || e.Delta == "" {
		return nil, fmt.Errorf("%w: user delta without id or text", ErrDiscarded)
	}

	key := r.resolve(e.ItemID)
	discarded := false
	if _, changed := r.store.Upsert(key, RoleUser, func(item *Item, created bool) bool {
		if item.IsDone() {
			discarded = true
			return false
		}
		if created || item.Placeholder {
			item.Text = ""
			item.Placeholder = false
		}
		item.Text += e.Delta
		item.Status = item.Status.advance(StatusInProgress)
		return true
	}); !changed {
		if discarded {
			return nil, fmt.Errorf("%w: delta for finished item %s", ErrDiscarded, key)
		}
		return nil, nil
	}
	return []string{key}, nil
}

func (r *Reconciler) userCompleted(e events.UserTranscriptCompleted) ([]string, error) {
	if e.ItemID == "" {
		return nil, fmt.Errorf("%w: completion without id", ErrDiscarded)
	}

	key := r.resolve(e.ItemID)
	r.store.Upsert(key, RoleUser, func(item *Item, created bool) bool {
		item.Text = strings.TrimSpace(e.Transcript)
		item.Placeholder = false
		item.Status = StatusDone
		return true
	})
	return []string{key}, nil
}

func (r *Reconciler) history(historyItem events.HistoryItem) ([]string, error) {
	if historyItem.Type != "" && historyItem.Type != events.ItemTypeMessage {
		return nil, nil
	}
	if historyItem.ItemID == "" {
		return nil, fmt.Errorf("%w: history item without id", ErrDiscarded)
	}
	role := Role(historyItem.Role)
	if !role.valid() {
		return nil, nil
	}
	text := historyItem.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: history item %s has no text", ErrDiscarded, historyItem.ItemID)
	}

	key := r.resolve(historyItem.ItemID)
	r.store.Upsert(key, role, func(item *Item, created bool) bool {
		item.Text = text
		item.Placeholder = false
		if historyItem.HasStatus() {
			status := StatusInProgress
			if historyItem.IsCompleted() {
				status = StatusDone
			}
			item.Status = item.Status.advance(status)
		}
		return true
	})

	if role == RoleAssistant {
		r.guardrail.Begin(key)
		if historyItem.IsCompleted() {
			r.guardrail.ItemCompleted(key)
		}
	}
	return []string{key}, nil
}

// assistantKey normalises item and response ids onto one key per assistant
// turn. Response-only deltas use a derived "assistant-<responseId>" key; an
// event carrying both ids links them to whichever key is already in use.
func (r *Reconciler) assistantKey(itemID, responseID string) string {
	var responseKey string
	if responseID != "" {
		responseKey = "assistant-" + responseID
	}

	switch {
	case itemID == "" && responseKey == "":
		return ""
	case responseKey == "":
		return r.resolve(itemID)
	case itemID == "":
		return r.resolve(responseKey)
	}

	canonical := r.resolve(itemID)
	if byResponse := r.resolve(responseKey); !r.store.Has(canonical) && r.store.Has(byResponse) {
		canonical = byResponse
	}
	if _, linked := r.aliases[responseKey]; !linked && canonical != responseKey {
		logger.Debug("linked assistant response to item", "item_id", itemID, "response_id", responseID, "key", canonical)
	}
	if canonical != itemID {
		r.aliases[itemID] = canonical
	}
	if canonical != responseKey {
		r.aliases[responseKey] = canonical
	}
	return canonical
}

func (r *Reconciler) resolve(id string) string {
	if canonical, ok := r.aliases[id]; ok {
		return canonical
	}
	return id
}
