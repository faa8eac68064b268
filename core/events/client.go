package events

// ClientEvent is an event sent from the client to the transport.
type ClientEvent interface {
	ClientEventType() string
}

const (
	ClientSessionUpdate          = "session.update"
	ClientConversationItemCreate = "conversation.item.create"
	ClientResponseCreate         = "response.create"
	ClientResponseCancel         = "response.cancel"
	ClientInputAudioBufferClear  = "input_audio_buffer.clear"
	ClientInputAudioBufferCommit = "input_audio_buffer.commit"
)

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

// ToolDefinition describes a function the model may call. Parameters is
// marshalled as-is and is normally a JSON schema.
type ToolDefinition struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// SessionConfig is the session configuration pushed with session.update.
//
// A nil TurnDetection is sent as an explicit null, which disables server VAD.
type SessionConfig struct {
	Instructions  string           `json:"instructions,omitempty"`
	Voice         string           `json:"voice,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	TurnDetection *TurnDetection   `json:"turn_detection"`
}

type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

func NewSessionUpdate(session SessionConfig) SessionUpdate {
	return SessionUpdate{Type: ClientSessionUpdate, Session: session}
}

func (e SessionUpdate) ClientEventType() string { return e.Type }

type ClientContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ClientItem struct {
	ID      string              `json:"id"`
	Type    string              `json:"type"`
	Role    string              `json:"role"`
	Content []ClientContentPart `json:"content"`
}

type ConversationItemCreate struct {
	Type string     `json:"type"`
	Item ClientItem `json:"item"`
}

// NewUserTextMessage creates a conversation.item.create event carrying a
// user text message with the given item id.
func NewUserTextMessage(id, text string) ConversationItemCreate {
	return ConversationItemCreate{
		Type: ClientConversationItemCreate,
		Item: ClientItem{
			ID:      id,
			Type:    string(ItemTypeMessage),
			Role:    "user",
			Content: []ClientContentPart{{Type: string(ContentTypeInputText), Text: text}},
		},
	}
}

func (e ConversationItemCreate) ClientEventType() string { return e.Type }

// Simple carries client events that consist of the type only.
type Simple struct {
	Type string `json:"type"`
}

func NewResponseCreate() Simple { return Simple{Type: ClientResponseCreate} }
func NewResponseCancel() Simple { return Simple{Type: ClientResponseCancel} }
func NewInputAudioBufferClear() Simple { return Simple{Type: ClientInputAudioBufferClear} }
func NewInputAudioBufferCommit() Simple { return Simple{Type: ClientInputAudioBufferCommit} }
func (e Simple) ClientEventType() string { return e.Type }
