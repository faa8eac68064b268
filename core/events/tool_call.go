package events

// ToolCall is the function call view of a history item.
type ToolCall struct {
	ItemID    string
	CallID    string
	Name      string
	Arguments string
	Output    string
	// Status is the snapshot status; empty when the snapshot carried none.
	Status    string
}

// Ready reports whether the call's arguments are final. The first snapshot
// of a call is usually in progress with empty arguments; a snapshot with no
// status at all is taken as final.
func (c ToolCall) Ready() bool {
	return c.Status == "" || c.Status == ItemStatusCompleted
}

// ToolCall returns the function call carried by the item, if any.
func (i HistoryItem) ToolCall() (ToolCall, bool) {
	if i.Type != ItemTypeFunctionCall || i.ItemID == "" {
		return ToolCall{}, false
	}

	return ToolCall{
		ItemID:    i.ItemID,
		CallID:    i.CallID,
		Name:      i.Name,
		Arguments: i.Arguments,
		Output:    i.Output,
		Status:    i.Status,
	}, true
}
