package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/termctl/internal/models"
	"github.com/yourusername/termctl/internal/registry"
)

const (
	DefaultTimeout = 5 * time.Second
)

// Process exit codes for termctl.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnavailable = 2
	ExitTimeout     = 3
	ExitUsage       = 64
)

var (
	// ErrTimeout means the exchange did not finish within the timeout.
	ErrTimeout = errors.New("timed out")
	// ErrConnect means the socket could not be reached or dropped the exchange.
	ErrConnect = errors.New("connection failed")
	// ErrProtocol means the server answered with something that is not a
	// valid reply to our request.
	ErrProtocol = errors.New("protocol error")
)

// ReplyError is a structured failure reported by the server.
type ReplyError struct {
	Info models.ErrorInfo
}

func (e *ReplyError) Error() string {
	return e.Info.String()
}

// UsageError marks bad command-line input; no connection is attempted.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Client sends control messages to one termd instance
type Client struct {
	endpoint registry.Endpoint
	timeout  time.Duration
}

// NewClient creates a client for the endpoint
func NewClient(endpoint registry.Endpoint, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{endpoint: endpoint, timeout: timeout}
}

// Endpoint returns the endpoint the client talks to
func (c *Client) Endpoint() registry.Endpoint {
	return c.endpoint
}

// Send performs one exchange. A reply the server marks as failed is
// returned together with a *ReplyError. Nothing is retried.
func (c *Client) Send(ctx context.Context, msg models.Message) (*models.Reply, error) {
	if err := msg.Validate(); err != nil {
		return nil, &UsageError{Err: err}
	}

	conn := NewConnection(c.endpoint.Path, c.timeout)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	defer conn.Close()

	req := models.NewRequest(uuid.New().String(), msg)
	reply, err := conn.SendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if reply.IsError() {
		info := models.ErrorInfo{Kind: models.ErrInternal, Message: "request failed"}
		if reply.Error != nil {
			info = *reply.Error
		}
		return reply, &ReplyError{Info: info}
	}
	return reply, nil
}

// CreateWindow asks the server to open a window and returns its id
func (c *Client) CreateWindow(ctx context.Context, cw models.CreateWindow) (models.WindowID, error) {
	reply, err := c.Send(ctx, models.NewCreateWindow(cw))
	if err != nil {
		return 0, err
	}
	return reply.WindowID, nil
}

// UpdateConfig applies options to the targeted windows
func (c *Client) UpdateConfig(ctx context.Context, uc models.UpdateConfig) error {
	_, err := c.Send(ctx, models.NewUpdateConfig(uc))
	return err
}

// ExitCode maps an error from this package, or from registry.Resolve, to
// the process exit status.
func ExitCode(err error) int {
	var (
		replyErr *ReplyError
		usageErr *UsageError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.As(err, &replyErr):
		return ExitFailure
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, registry.ErrStaleEndpoint),
		errors.Is(err, ErrConnect):
		return ExitUnavailable
	}
	return ExitFailure
}
