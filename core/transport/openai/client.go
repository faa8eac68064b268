// Package openai is a realtime session transport over the OpenAI realtime
// WebSocket API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL   = "wss://api.openai.com/v1/realtime"
	defaultModel = "gpt-4o-realtime-preview-2025-06-03"
)

var (
	ErrNotConnected     = errors.New("realtime transport not connected")
	ErrAlreadyConnected = errors.New("realtime transport already connected")
)

type Client struct {
	url    string
	model  string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex
	muted   atomic.Bool
	closing atomic.Bool
}

type ClientOption func(*Client)

func WithURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{url: defaultURL, model: defaultModel, dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the realtime endpoint and starts delivering inbound events.
// A "connected" status event is emitted once the socket is open; the read
// loop emits "disconnected" when the socket closes.
func (c *Client) Connect(ctx context.Context, opts ...transport.ConnectOption) error {
	ctx, span := tracer.Start(ctx, "connect realtime transport")
	defer span.End()

	options := transport.NewConnectOptions(opts...)
	if options.Model == "" {
		options.Model = c.model
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	endpoint, err := url.Parse(c.url)
	if err != nil {
		c.mu.Unlock()
		err = fmt.Errorf("invalid realtime url: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	query := endpoint.Query()
	query.Set("model", options.Model)
	endpoint.RawQuery = query.Encode()
	span.SetAttributes(attribute.String("realtime.model", options.Model))

	header := http.Header{"OpenAI-Beta": {"realtime=v1"}}
	if options.EphemeralKey != "" {
		header.Set("Authorization", "Bearer "+options.EphemeralKey)
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		c.mu.Unlock()
		err = fmt.Errorf("failed to open realtime socket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	done := make(chan struct{})
	c.conn = conn
	c.done = done
	c.closing.Store(false)
	c.mu.Unlock()

	options.EventCallback(events.NewConnectionStatusChanged(events.ConnectionStatusConnected))
	go c.readLoop(conn, done, options)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}, options transport.ConnectOptions) {
	defer close(done)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			c.detach(conn)
			if c.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				options.EventCallback(events.NewConnectionStatusChanged(events.ConnectionStatusDisconnected))
				return
			}
			logger.Warn("realtime socket read failed", "error", err)
			options.EventCallback(events.NewConnectionFailed(err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, err := events.Decode(msg)
		if err != nil {
			logger.Debug("failed to decode server event", "error", err)
			options.DecodeErrorCallback(msg, err)
			continue
		}
		options.EventCallback(event)
	}
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	_ = conn.Close()
}

// SendEvent writes a client event to the socket.
func (c *Client) SendEvent(event events.ClientEvent) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event.ClientEventType(), err)
	}
	logger.Debug("sending client event", "type", event.ClientEventType())

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", event.ClientEventType(), err)
	}
	return nil
}

// Interrupt cancels the response currently being generated.
func (c *Client) Interrupt() error {
	return c.SendEvent(events.NewResponseCancel())
}

// Mute records whether assistant audio should be played. Playback happens
// outside the transport; consumers read the flag with Muted.
func (c *Client) Mute(muted bool) error {
	c.muted.Store(muted)
	return nil
}

func (c *Client) Muted() bool { return c.muted.Load() }

// Close closes the socket and waits for the read loop to finish.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.closing.Store(true)
	c.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	closeErr := conn.Close()
	<-done

	if errors.Is(closeErr, net.ErrClosed) {
		closeErr = nil
	}
	if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) && !errors.Is(writeErr, net.ErrClosed) {
		return errors.Join(fmt.Errorf("failed to send close frame: %w", writeErr), closeErr)
	}
	return closeErr
}
