package events

const (
	// KindUserSpeechStarted identifies start of user speech activity.
	KindUserSpeechStarted Kind = "user_input.speech_started"
	// KindUserTranscriptDelta identifies live transcription fragments.
	KindUserTranscriptDelta Kind = "user_input.transcript_delta"
	// KindUserTranscriptCompleted identifies the final transcript for an item.
	KindUserTranscriptCompleted Kind = "user_input.transcript_completed"
)

// UserSpeechStarted marks when voice activity detection opened an input item.
type UserSpeechStarted struct {
	Base
	ItemID string
}

// NewUserSpeechStarted creates a user speech started event.
func NewUserSpeechStarted(itemID string) UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted), ItemID: itemID}
}

// UserTranscriptDelta carries an append-only transcription fragment.
type UserTranscriptDelta struct {
	Base
	ItemID string
	Delta  string
}

// NewUserTranscriptDelta creates a live transcription fragment event.
func NewUserTranscriptDelta(itemID, delta string) UserTranscriptDelta {
	return UserTranscriptDelta{Base: NewBase(KindUserTranscriptDelta), ItemID: itemID, Delta: delta}
}

// UserTranscriptCompleted carries the authoritative transcript for an item.
type UserTranscriptCompleted struct {
	Base
	ItemID     string
	Transcript string
}

// NewUserTranscriptCompleted creates a final transcript event.
func NewUserTranscriptCompleted(itemID, transcript string) UserTranscriptCompleted {
	return UserTranscriptCompleted{Base: NewBase(KindUserTranscriptCompleted), ItemID: itemID, Transcript: transcript}
}
