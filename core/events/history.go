package events

import "strings"

const (
	// KindHistoryItemAdded identifies a single authoritative item snapshot.
	KindHistoryItemAdded Kind = "history.item_added"
	// KindHistoryUpdated identifies a change of the authoritative item list.
	KindHistoryUpdated Kind = "history.updated"
)

type ItemType string

const (
	ItemTypeMessage            ItemType = "message"
	ItemTypeFunctionCall       ItemType = "function_call"
	ItemTypeFunctionCallOutput ItemType = "function_call_output"
)

type ContentType string

const (
	ContentTypeText        ContentType = "text"
	ContentTypeInputText   ContentType = "input_text"
	ContentTypeOutputText  ContentType = "output_text"
	ContentTypeAudio       ContentType = "audio"
	ContentTypeInputAudio  ContentType = "input_audio"
	ContentTypeOutputAudio ContentType = "output_audio"
)

// ItemStatusCompleted is the wire status of a finished item.
const ItemStatusCompleted = "completed"

// ContentPart is one part of a multi-part conversation item.
type ContentPart struct {
	Type       ContentType
	Text       string
	Transcript string
}

// HistoryItem is an authoritative description of a conversation item.
//
// Status is empty when the snapshot carried no status at all.
type HistoryItem struct {
	ItemID  string
	Type    ItemType
	Role    string
	Status  string
	Content []ContentPart

	// Function call fields
	CallID    string
	Name      string
	Arguments string
	Output    string
}

// IsCompleted reports whether the snapshot marks the item as finished.
func (i HistoryItem) IsCompleted() bool {
	return i.Status == ItemStatusCompleted
}

// HasStatus reports whether the snapshot carried a status field.
func (i HistoryItem) HasStatus() bool {
	return i.Status != ""
}

// Text concatenates all text-bearing parts in order, skipping empty ones,
// joined by single spaces.
func (i HistoryItem) Text() string {
	parts := make([]string, 0, len(i.Content))
	for _, part := range i.Content {
		var text string
		switch part.Type {
		case ContentTypeText, ContentTypeInputText, ContentTypeOutputText:
			text = part.Text
		case ContentTypeAudio, ContentTypeInputAudio, ContentTypeOutputAudio:
			text = part.Transcript
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// HistoryItemAdded carries a single item snapshot.
type HistoryItemAdded struct {
	Base
	Item HistoryItem
}

// NewHistoryItemAdded creates a history item added event.
func NewHistoryItemAdded(item HistoryItem) HistoryItemAdded {
	return HistoryItemAdded{Base: NewBase(KindHistoryItemAdded), Item: item}
}

// HistoryUpdated carries the current snapshot of one or more items.
type HistoryUpdated struct {
	Base
	Items []HistoryItem
}

// NewHistoryUpdated creates a history updated event.
func NewHistoryUpdated(items ...HistoryItem) HistoryUpdated {
	return HistoryUpdated{Base: NewBase(KindHistoryUpdated), Items: items}
}
