package events

// KindConnectionStatusChanged identifies transport lifecycle transitions.
const KindConnectionStatusChanged Kind = "connection.status_changed"

type ConnectionStatus string

const (
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
)

// ConnectionStatusChanged reports a transport lifecycle transition. Err is
// set when the transport dropped because of a failure.
type ConnectionStatusChanged struct {
	Base
	Status ConnectionStatus
	Err    error
}

// NewConnectionStatusChanged creates a connection status event.
func NewConnectionStatusChanged(status ConnectionStatus) ConnectionStatusChanged {
	return ConnectionStatusChanged{Base: NewBase(KindConnectionStatusChanged), Status: status}
}

// NewConnectionFailed creates a disconnected status event caused by err.
func NewConnectionFailed(err error) ConnectionStatusChanged {
	return ConnectionStatusChanged{
		Base:   NewBase(KindConnectionStatusChanged),
		Status: ConnectionStatusDisconnected,
		Err:    err,
	}
}
