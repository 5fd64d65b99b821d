package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/yourusername/termctl/internal/codec"
	"github.com/yourusername/termctl/internal/models"
	"github.com/yourusername/termctl/internal/registry"
)

// Connection carries exactly one request/reply exchange over the unix socket
type Connection struct {
	socketPath string
	conn       net.Conn
	timeout    time.Duration
	deadline   time.Time
}

// NewConnection creates a new connection instance
func NewConnection(socketPath string, timeout time.Duration) *Connection {
	return &Connection{
		socketPath: socketPath,
		timeout:    timeout,
	}
}

// Connect dials the socket. The timeout starts here and covers the whole
// exchange.
func (c *Connection) Connect(ctx context.Context) error {
	c.deadline = time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(c.deadline) {
		c.deadline = d
	}

	dialer := net.Dialer{Deadline: c.deadline}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return c.dialError(err)
	}
	if err := conn.SetDeadline(c.deadline); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: set deadline: %v", ErrConnect, err)
	}
	c.conn = conn
	return nil
}

func (c *Connection) dialError(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: connecting to %s", ErrTimeout, c.socketPath)
	case registry.IsRefused(err):
		return &registry.ResolveError{Path: c.socketPath, Err: fmt.Errorf("%w: connection refused", registry.ErrStaleEndpoint)}
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return &registry.ResolveError{Path: c.socketPath, Err: registry.ErrNotFound}
	}
	return fmt.Errorf("%w: %s: %v", ErrConnect, c.socketPath, err)
}

// Close closes the connection
func (c *Connection) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// SendRequest writes one request frame and waits for the matching reply.
func (c *Connection) SendRequest(ctx context.Context, req *models.Request) (*models.Reply, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("%w: not connected", ErrConnect)
	}

	if err := codec.WriteRequest(c.conn, req); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: sending request", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: write request: %v", ErrConnect, err)
	}

	// Read in the background so a cancelled ctx returns immediately
	replyChan := make(chan *models.Reply, 1)
	errChan := make(chan error, 1)

	go func() {
		reply, err := codec.ReadReply(c.conn)
		if err != nil {
			errChan <- err
			return
		}
		replyChan <- reply
	}()

	select {
	case <-ctx.Done():
		_ = c.conn.SetDeadline(time.Now())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: waiting for reply", ErrTimeout)
		}
		return nil, ctx.Err()
	case err := <-errChan:
		switch {
		case isTimeout(err):
			return nil, fmt.Errorf("%w: waiting for reply", ErrTimeout)
		case codec.IsDecodeError(err):
			return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return nil, fmt.Errorf("%w: read reply: %v", ErrConnect, err)
	case reply := <-replyChan:
		if reply.ID != req.ID {
			return nil, fmt.Errorf("%w: reply id %q does not match request %q", ErrProtocol, reply.ID, req.ID)
		}
		return reply, nil
	}
}

// IsConnected returns true if the connection is established
func (c *Connection) IsConnected() bool {
	return c.conn != nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
