// Package transport holds the options shared by realtime session transports.
package transport

import "github.com/koscakluka/ema-realtime/core/events"

type ConnectOptions struct {
	EphemeralKey string
	Model        string

	// EventCallback receives every decoded inbound event in arrival order,
	// including connection status changes.
	EventCallback func(events.Event)
	// DecodeErrorCallback receives wire messages that failed to decode.
	DecodeErrorCallback func(raw []byte, err error)
}

type ConnectOption func(*ConnectOptions)

func NewConnectOptions(opts ...ConnectOption) ConnectOptions {
	options := ConnectOptions{
		EventCallback:       func(events.Event) {},
		DecodeErrorCallback: func([]byte, error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithEphemeralKey(key string) ConnectOption {
	return func(o *ConnectOptions) {
		o.EphemeralKey = key
	}
}

func WithModel(model string) ConnectOption {
	return func(o *ConnectOptions) {
		o.Model = model
	}
}

func WithEventCallback(callback func(events.Event)) ConnectOption {
	return func(o *ConnectOptions) {
		if callback != nil {
			o.EventCallback = callback
		}
	}
}

func WithDecodeErrorCallback(callback func(raw []byte, err error)) ConnectOption {
	return func(o *ConnectOptions) {
		if callback != nil {
			o.DecodeErrorCallback = callback
		}
	}
}
