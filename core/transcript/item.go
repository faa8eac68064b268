package transcript

import (
	"time"

	"github.com/koscakluka/ema-realtime/core/guardrail"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) valid() bool { return r == RoleUser || r == RoleAssistant }

// Status only ever moves forward: PENDING, IN_PROGRESS, DONE.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

func (s Status) advance(to Status) Status {
	if to > s {
		return to
	}
	return s
}

// Item is one visible conversation turn.
type Item struct {
	ItemID    string
	Role      Role
	Text      string
	Status    Status
	Guardrail *guardrail.Result
	CreatedAt time.Time
	UpdatedAt time.Time

	// Hidden items are simulated user messages that are kept for ordering
	// but not rendered.
	Hidden bool
	// Placeholder is set while Text is still the transcription stand-in.
	Placeholder bool
}

func (i Item) IsDone() bool { return i.Status == StatusDone }

func (i Item) clone() Item {
	if i.Guardrail != nil {
		result := *i.Guardrail
		i.Guardrail = &result
	}
	return i
}

// Breadcrumb is a write-once annotation shown between transcript items.
type Breadcrumb struct {
	ID        string
	Title     string
	Data      any
	CreatedAt time.Time
}

type EntryKind string

const (
	EntryMessage    EntryKind = "message"
	EntryBreadcrumb EntryKind = "breadcrumb"
)

// Entry is one row of the ordered transcript. Exactly one of Item and
// Breadcrumb is set, matching Kind.
type Entry struct {
	Kind       EntryKind
	Item       *Item
	Breadcrumb *Breadcrumb
}
