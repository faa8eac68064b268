// Package credentials fetches short-lived realtime session secrets.
package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultSessionURL = "https://api.openai.com/v1/realtime/sessions"
	defaultModel      = "gpt-4o-realtime-preview-2025-06-03"
)

// ErrNoSecret is returned when the session endpoint answers without a
// client secret.
var ErrNoSecret = errors.New("session response has no client secret")

type Client struct {
	sessionURL string
	apiKey     string
	model      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithSessionURL(url string) ClientOption {
	return func(c *Client) { c.sessionURL = url }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a client configured from OPENAI_API_KEY,
// REALTIME_SESSION_URL and REALTIME_MODEL, overridden by opts.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		sessionURL: defaultSessionURL,
		model:      defaultModel,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		c.apiKey = apiKey
	}
	if sessionURL, ok := os.LookupEnv("REALTIME_SESSION_URL"); ok && sessionURL != "" {
		c.sessionURL = sessionURL
	}
	if model, ok := os.LookupEnv("REALTIME_MODEL"); ok && model != "" {
		c.model = model
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

type sessionRequest struct {
	Model string `json:"model"`
}

type sessionResponse struct {
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// EphemeralKey requests a new client secret. It is never retried.
func (c *Client) EphemeralKey(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "fetch ephemeral key")
	defer span.End()

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	requestBody, err := json.Marshal(sessionRequest{Model: c.model})
	if err != nil {
		return fail(fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return fail(fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	span.SetAttributes(attribute.String("request.url", req.URL.String()), attribute.String("request.model", c.model))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("response.error", string(body)))
		return fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return fail(fmt.Errorf("error unmarshalling response: %w", err))
	}
	if session.ClientSecret == nil || session.ClientSecret.Value == "" {
		logger.WarnContext(ctx, "session endpoint returned no client secret")
		return fail(ErrNoSecret)
	}
	return session.ClientSecret.Value, nil
}
