package events

import "encoding/json"

const (
	// KindTransportError identifies errors reported by the transport.
	KindTransportError Kind = "transport.error"
	// KindUnrecognized identifies wire messages without a typed mapping.
	KindUnrecognized Kind = "transport.unrecognized"
)

// TransportError carries an error message reported by the transport.
type TransportError struct {
	Base
	Code    string
	Message string
}

// NewTransportError creates a transport error event.
func NewTransportError(code, message string) TransportError {
	return TransportError{Base: NewBase(KindTransportError), Code: code, Message: message}
}

// Unrecognized carries a wire message the decoder has no mapping for.
type Unrecognized struct {
	Base
	Type string
	Raw  json.RawMessage
}

// NewUnrecognized creates an unrecognized wire message event.
func NewUnrecognized(messageType string, raw []byte) Unrecognized {
	return Unrecognized{Base: NewBase(KindUnrecognized), Type: messageType, Raw: json.RawMessage(raw)}
}
