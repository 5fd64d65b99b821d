// Package router applies decoded control messages to the window set.
package router

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yourusername/termctl/internal/config"
	"github.com/yourusername/termctl/internal/logging"
	"github.com/yourusername/termctl/internal/models"
	"github.com/yourusername/termctl/internal/window"
)

// WindowSet is the part of window.Manager the router needs.
type WindowSet interface {
	Create(ctx context.Context, opts window.Options) (*window.Window, error)
	Snapshot() []*window.Window
	Lookup(id models.WindowID) (*window.Window, bool)
}

// Ack is the result of a successfully routed message.
type Ack struct {
	// WindowID is set for CreateWindow.
	WindowID models.WindowID
}

// Router dispatches messages by kind.
type Router struct {
	windows WindowSet
}

// New creates a router over the given window set.
func New(windows WindowSet) *Router {
	return &Router{windows: windows}
}

// Handle routes the request's message and builds the reply. It never
// returns nil.
func (r *Router) Handle(ctx context.Context, req *models.Request) *models.Reply {
	ack, err := r.Route(ctx, &req.Message)
	if err != nil {
		var merr *models.Error
		if !errors.As(err, &merr) {
			merr = models.NewError(models.ErrInternal, err)
		}
		return models.NewFailure(req.ID, merr)
	}
	return models.NewSuccess(req.ID, ack.WindowID)
}

// Route applies one message. Failures are *models.Error.
//
// Once routing starts it runs to completion: a caller that goes away
// mid-request does not leave windows half-updated.
func (r *Router) Route(ctx context.Context, msg *models.Message) (Ack, error) {
	if err := msg.Validate(); err != nil {
		return Ack{}, models.NewError(models.ErrDecode, err)
	}
	ctx = context.WithoutCancel(ctx)

	switch msg.Kind {
	case models.KindCreateWindow:
		return r.createWindow(ctx, msg.CreateWindow)
	case models.KindUpdateConfig:
		return Ack{}, r.updateConfig(msg.UpdateConfig)
	}
	return Ack{}, models.Errorf(models.ErrDecode, "unknown message kind %q", msg.Kind)
}

func (r *Router) createWindow(ctx context.Context, cw *models.CreateWindow) (Ack, error) {
	if cw.WorkingDirectory != "" {
		if err := checkDirectory(cw.WorkingDirectory); err != nil {
			return Ack{}, err
		}
	}

	w, err := r.windows.Create(ctx, window.Options{
		Hold:             cw.Hold,
		WorkingDirectory: cw.WorkingDirectory,
		Command:          cw.Command,
	})
	if err != nil {
		return Ack{}, models.NewError(models.ErrSpawnFailed, err)
	}
	return Ack{WindowID: w.ID()}, nil
}

func checkDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Errorf(models.ErrInvalidWorkingDirectory, "%s: no such directory", dir)
		}
		return models.Errorf(models.ErrInvalidWorkingDirectory, "%s: %v", dir, err)
	}
	if !info.IsDir() {
		return models.Errorf(models.ErrInvalidWorkingDirectory, "%s: not a directory", dir)
	}
	return nil
}

func (r *Router) updateConfig(uc *models.UpdateConfig) error {
	opts := make([]config.Option, len(uc.Options))
	for i, o := range uc.Options {
		opts[i] = config.Option{Key: o.Key, Value: o.Value}
	}

	// Reject the batch before any window is looked at.
	if err := config.CheckOptions(opts); err != nil {
		return optionError(err)
	}

	targets := r.resolve(uc.Target)
	if len(targets) == 0 {
		logging.Debug().Str("target", uc.Target.String()).Msg("config update matched no windows")
		return nil
	}

	unlock := window.LockAll(targets)
	defer unlock()

	changes := make([]window.Change, len(targets))
	for i, w := range targets {
		change, err := w.PrepareLocked(opts, uc.Reset)
		if err != nil {
			return optionError(fmt.Errorf("window %d: %w", w.ID(), err))
		}
		changes[i] = change
	}
	for i, w := range targets {
		w.CommitLocked(changes[i])
	}

	logging.Info().
		Str("target", uc.Target.String()).
		Int("windows", len(targets)).
		Int("options", len(opts)).
		Bool("reset", uc.Reset).
		Msg("config updated")
	return nil
}

// resolve snapshots the windows a target names. A specific id that is not
// live resolves to nothing.
func (r *Router) resolve(t models.WindowTarget) []*window.Window {
	if t.All {
		return r.windows.Snapshot()
	}
	if w, ok := r.windows.Lookup(t.ID); ok {
		return []*window.Window{w}
	}
	return nil
}

func optionError(err error) error {
	var oerr *config.OptionError
	if !errors.As(err, &oerr) {
		return models.NewError(models.ErrInternal, err)
	}
	kind := models.ErrInvalidValueForKey
	if oerr.Unknown {
		kind = models.ErrUnknownOptionKey
	}
	merr := models.NewError(kind, err)
	merr.Key = oerr.Key
	return merr
}
