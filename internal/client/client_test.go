package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/termctl/internal/codec"
	"github.com/yourusername/termctl/internal/models"
	"github.com/yourusername/termctl/internal/registry"
	"github.com/yourusername/termctl/internal/server"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cli")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func serve(t *testing.T, h server.Handler) registry.Endpoint {
	t.Helper()
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.New(h, server.Options{}).Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return registry.Endpoint{Path: path}
}

func TestCreateWindowRoundTrip(t *testing.T) {
	received := make(chan models.Message, 1)
	ep := serve(t, server.HandlerFunc(func(_ context.Context, req *models.Request) *models.Reply {
		received <- req.Message
		return models.NewSuccess(req.ID, 7)
	}))

	c := NewClient(ep, time.Second)
	id, err := c.CreateWindow(context.Background(), models.CreateWindow{WorkingDirectory: "/tmp", Hold: true})
	require.NoError(t, err)
	require.Equal(t, models.WindowID(7), id)

	got := <-received
	require.Equal(t, models.KindCreateWindow, got.Kind)
	require.Equal(t, "/tmp", got.CreateWindow.WorkingDirectory)
	require.True(t, got.CreateWindow.Hold)
}

func TestReplyErrorIsStructured(t *testing.T) {
	ep := serve(t, server.HandlerFunc(func(_ context.Context, req *models.Request) *models.Reply {
		merr := models.Errorf(models.ErrInvalidValueForKey, "unknown variant `NotAShape`")
		merr.Key = "cursor.style"
		return models.NewFailure(req.ID, merr)
	}))

	err := NewClient(ep, time.Second).UpdateConfig(context.Background(), models.UpdateConfig{
		Target:  models.TargetAll(),
		Options: []models.ConfigOption{{Key: "cursor.style", Value: "NotAShape"}},
	})
	var replyErr *ReplyError
	require.ErrorAs(t, err, &replyErr)
	require.Equal(t, models.ErrInvalidValueForKey, replyErr.Info.Kind)
	require.Equal(t, "cursor.style", replyErr.Info.Key)
	require.Equal(t, ExitFailure, ExitCode(err))
}

func TestTimeoutWhenServerNeverReplies(t *testing.T) {
	path := socketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = codec.ReadRequest(conn)
		time.Sleep(time.Second)
	}()

	start := time.Now()
	_, err = NewClient(registry.Endpoint{Path: path}, 100*time.Millisecond).
		CreateWindow(context.Background(), models.CreateWindow{})
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, ExitTimeout, ExitCode(err))
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestStaleSocketIsReported(t *testing.T) {
	path := socketPath(t)
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	_, err = NewClient(registry.Endpoint{Path: path}, time.Second).
		CreateWindow(context.Background(), models.CreateWindow{})
	require.ErrorIs(t, err, registry.ErrStaleEndpoint)
	require.Equal(t, ExitUnavailable, ExitCode(err))
}

func TestMissingSocketIsNotFound(t *testing.T) {
	_, err := NewClient(registry.Endpoint{Path: socketPath(t)}, time.Second).
		CreateWindow(context.Background(), models.CreateWindow{})
	require.ErrorIs(t, err, registry.ErrNotFound)
	require.Equal(t, ExitUnavailable, ExitCode(err))
}

func TestInvalidMessageNeverConnects(t *testing.T) {
	_, err := NewClient(registry.Endpoint{Path: socketPath(t)}, time.Second).
		CreateWindow(context.Background(), models.CreateWindow{WorkingDirectory: "relative/dir"})
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	require.Equal(t, ExitUsage, ExitCode(err))
}

func TestMismatchedReplyID(t *testing.T) {
	ep := serve(t, server.HandlerFunc(func(context.Context, *models.Request) *models.Reply {
		return models.NewSuccess("someone-else", 1)
	}))

	_, err := NewClient(ep, time.Second).CreateWindow(context.Background(), models.CreateWindow{})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestConnectionLifecycle(t *testing.T) {
	ep := serve(t, server.HandlerFunc(func(_ context.Context, req *models.Request) *models.Reply {
		return models.NewSuccess(req.ID, 1)
	}))

	conn := NewConnection(ep.Path, time.Second)
	req := models.NewRequest("r1", models.NewCreateWindow(models.CreateWindow{}))
	_, err := conn.SendRequest(context.Background(), req)
	require.ErrorIs(t, err, ErrConnect, "sending before Connect")

	require.NoError(t, conn.Connect(context.Background()))
	require.True(t, conn.IsConnected())
	reply, err := conn.SendRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "r1", reply.ID)

	require.NoError(t, conn.Close())
	require.False(t, conn.IsConnected())
	require.NoError(t, conn.Close(), "Close is idempotent")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"reply", &ReplyError{Info: models.ErrorInfo{Kind: models.ErrSpawnFailed}}, ExitFailure},
		{"usage", &UsageError{Err: errors.New("bad flag")}, ExitUsage},
		{"timeout", fmt.Errorf("%w: waiting for reply", ErrTimeout), ExitTimeout},
		{"not found", &registry.ResolveError{Err: registry.ErrNotFound}, ExitUnavailable},
		{"stale", &registry.ResolveError{Path: "/x", Err: registry.ErrStaleEndpoint}, ExitUnavailable},
		{"connect", fmt.Errorf("%w: boom", ErrConnect), ExitUnavailable},
		{"protocol", fmt.Errorf("%w: junk", ErrProtocol), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
