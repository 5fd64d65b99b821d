// Package server accepts control connections on termd's socket and runs
// one request/reply exchange per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/yourusername/termctl/internal/codec"
	"github.com/yourusername/termctl/internal/logging"
	"github.com/yourusername/termctl/internal/models"
)

// Handler processes one decoded request. It must always return a reply.
type Handler interface {
	Handle(ctx context.Context, req *models.Request) *models.Reply
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *models.Request) *models.Reply

func (f HandlerFunc) Handle(ctx context.Context, req *models.Request) *models.Reply {
	return f(ctx, req)
}

// Options tunes the listener.
type Options struct {
	// MaxConcurrent bounds connections served at once; further accepts wait.
	MaxConcurrent int64
	// AcceptRate is the sustained accepts per second, AcceptBurst the burst.
	AcceptRate  float64
	AcceptBurst int
	// ReadTimeout bounds reading the request, WriteTimeout writing the reply.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns the listener settings termd uses.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent: 16,
		AcceptRate:    100,
		AcceptBurst:   20,
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Server dispatches connections to a Handler.
type Server struct {
	handler Handler
	opts    Options
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// New creates a server. Zero option fields take their defaults.
func New(handler Handler, opts Options) *Server {
	def := DefaultOptions()
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = def.MaxConcurrent
	}
	if opts.AcceptRate <= 0 {
		opts.AcceptRate = def.AcceptRate
	}
	if opts.AcceptBurst <= 0 {
		opts.AcceptBurst = def.AcceptBurst
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	return &Server{
		handler: handler,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		limiter: rate.NewLimiter(rate.Limit(opts.AcceptRate), opts.AcceptBurst),
	}
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, then waits for in-flight exchanges to finish. Shutdown through
// either path returns nil.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	logging.Info().Str("addr", listener.Addr().String()).Msg("control socket listening")

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			_ = conn.Close()
			return nil
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer s.sem.Release(1)
			s.serveConn(ctx, c)
		}(conn)
	}
}

// connState tracks one exchange for logging.
type connState string

const (
	stateAccepted      connState = "accepted"
	stateReading       connState = "reading"
	stateDecoded       connState = "decoded"
	stateRouted        connState = "routed"
	stateRepliedClosed connState = "replied"
	stateErrorClosed   connState = "error"
)

type exchange struct {
	conn  net.Conn
	log   zerolog.Logger
	state connState
	start time.Time
}

func (e *exchange) enter(state connState) {
	e.state = state
	e.log.Debug().Str("state", string(state)).Msg("connection state")
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ex := &exchange{
		conn:  conn,
		log:   logging.Logger.With().Str("conn", uuid.NewString()).Logger(),
		start: time.Now(),
	}
	ex.enter(stateAccepted)

	ex.enter(stateReading)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	req, err := codec.ReadRequest(conn)
	if err != nil {
		if codec.IsDecodeError(err) {
			id := ""
			if req != nil {
				id = req.ID
			}
			ex.log.Warn().Err(err).Msg("rejecting malformed request")
			s.reply(ex, models.NewFailure(id, models.NewError(models.ErrDecode, err)))
		} else {
			ex.log.Debug().Err(err).Msg("connection closed before a request arrived")
		}
		ex.enter(stateErrorClosed)
		return
	}
	ex.enter(stateDecoded)
	ex.log = ex.log.With().Str("req", req.ID).Str("kind", string(req.Message.Kind)).Logger()

	reply := s.dispatch(ctx, ex, req)
	ex.enter(stateRouted)

	if err := s.reply(ex, reply); err != nil {
		ex.log.Debug().Err(err).Msg("client went away before the reply")
		ex.enter(stateErrorClosed)
		return
	}

	event := ex.log.Info()
	if reply.IsError() {
		event = ex.log.Warn().Str("error", reply.Error.String())
	}
	event.Bool("ok", reply.OK).Dur("took", time.Since(ex.start)).Msg("request handled")
	ex.enter(stateRepliedClosed)
}

// dispatch runs the handler, turning a panic or a missing reply into an
// Internal failure.
func (s *Server) dispatch(ctx context.Context, ex *exchange, req *models.Request) (reply *models.Reply) {
	defer func() {
		if r := recover(); r != nil {
			ex.log.Error().Interface("panic", r).Msg("handler panicked")
			reply = models.NewFailure(req.ID, models.Errorf(models.ErrInternal, "internal error handling %s", req.Message.Kind))
		}
	}()

	reply = s.handler.Handle(ctx, req)
	if reply == nil {
		reply = models.NewFailure(req.ID, models.Errorf(models.ErrInternal, "no reply for %s", req.Message.Kind))
	}
	return reply
}

func (s *Server) reply(ex *exchange, reply *models.Reply) error {
	_ = ex.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return codec.WriteReply(ex.conn, reply)
}
