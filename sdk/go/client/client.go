// Package client is the Go SDK for driving a remote dodging environment over
// websocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/internal/server"
)

// Client owns one remote environment. Calls are serialised; it is safe to
// share between goroutines but they take turns.
type Client struct {
	conn *websocket.Conn

	mu  sync.Mutex
	seq uint64

	closed int32 // atomic bool

	config Config
	logger log.Log
}

// Config holds configuration for the client
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL            string
	Token          string
	ConnectTimeout time.Duration
	// MessageTimeout bounds each request when the context has no deadline.
	MessageTimeout time.Duration

	Logger log.Log
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:            "ws://localhost:8080/ws",
		ConnectTimeout: 10 * time.Second,
		MessageTimeout: 10 * time.Second,
	}
}

// Dial connects to the server; the session's environment is created on
// connect and must be Reset before stepping.
func Dial(ctx context.Context, config Config) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidConfig)
	}
	if config.Logger == nil {
		config.Logger = log.NewNop()
	}

	dialer := websocket.Dialer{HandshakeTimeout: config.ConnectTimeout}
	header := http.Header{}
	if config.Token != "" {
		header.Set("Authorization", "Bearer "+config.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, config.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial %s: %w", config.URL, err)
	}

	c := &Client{
		conn:   conn,
		config: config,
		logger: config.Logger.With(log.String("component", "client")),
	}
	c.logger.Info("Connected", log.String("url", config.URL))
	return c, nil
}

// Reset starts a new episode and returns its first observation.
func (c *Client) Reset(ctx context.Context) (env.StepResult, error) {
	resp, err := c.do(ctx, server.Request{Type: server.MessageReset})
	if err != nil {
		return env.StepResult{}, err
	}
	return result(resp)
}

// Step sends one action. A zero dt uses the server's fixed tick.
func (c *Client) Step(ctx context.Context, action []float64, dt float64) (env.StepResult, error) {
	resp, err := c.do(ctx, server.Request{Type: server.MessageStep, Action: action, Dt: dt})
	if err != nil {
		return env.StepResult{}, err
	}
	return result(resp)
}

func (c *Client) Info(ctx context.Context) (env.Info, error) {
	resp, err := c.do(ctx, server.Request{Type: server.MessageInfo})
	if err != nil {
		return env.Info{}, err
	}
	if resp.Info == nil {
		return env.Info{}, fmt.Errorf("%w: info response without payload", ErrInvalidMessage)
	}
	return *resp.Info, nil
}

// ReportCollision tells the server the agent was hit; the next Step ends the
// episode.
func (c *Client) ReportCollision(ctx context.Context) error {
	_, err := c.do(ctx, server.Request{Type: server.MessageCollision})
	return err
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.logger.Info("Disconnected")
	return c.conn.Close()
}

func (c *Client) do(ctx context.Context, req server.Request) (server.Response, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return server.Response{}, ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	req.Seq = c.seq

	deadline, ok := ctx.Deadline()
	if !ok && c.config.MessageTimeout > 0 {
		deadline = time.Now().Add(c.config.MessageTimeout)
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteJSON(req); err != nil {
		return server.Response{}, c.fail(ctx, err)
	}

	var resp server.Response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return server.Response{}, c.fail(ctx, err)
	}
	if resp.Seq != req.Seq {
		return server.Response{}, c.fail(ctx, fmt.Errorf("%w: response seq %d for request %d", ErrInvalidMessage, resp.Seq, req.Seq))
	}
	if resp.Type == server.MessageError {
		return resp, &ServerError{Code: resp.Code, Message: resp.Error}
	}
	return resp, nil
}

// fail closes the client after a transport error; the connection state is
// unknown from then on.
func (c *Client) fail(ctx context.Context, err error) error {
	c.logger.Warn("Request failed", log.Error(err))
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		_ = c.conn.Close()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

func result(resp server.Response) (env.StepResult, error) {
	if resp.Result == nil {
		return env.StepResult{}, fmt.Errorf("%w: %s response without result", ErrInvalidMessage, resp.Type)
	}
	return *resp.Result, nil
}
