package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/termctl/internal/config"
	"github.com/yourusername/termctl/internal/logging"
	"github.com/yourusername/termctl/internal/registry"
	"github.com/yourusername/termctl/internal/router"
	"github.com/yourusername/termctl/internal/server"
	"github.com/yourusername/termctl/internal/window"
)

const (
	probeTimeout    = 500 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

var (
	configPath string
	socketPath string
	logStderr  bool
	debugMode  bool
	noWindow   bool
	holdFirst  bool
	runCommand bool
)

// errLastWindowClosed ends the run group once no window is left.
var errLastWindowClosed = errors.New("last window closed")

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "termd [-e command [args...]]",
	Short: "Terminal window host with a live control socket",
	Long: `termd hosts terminal windows and listens on a control socket so that
termctl can open new windows and change configuration at runtime.

The socket is created in $XDG_RUNTIME_DIR and exported to every window as
TERMCTL_SOCKET. termd exits when its last window closes.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && !runCommand {
			return fmt.Errorf("unexpected argument %q (use -e to pass a command)", args[0])
		}
		if runCommand && len(args) == 0 {
			return fmt.Errorf("-e requires a command")
		}

		var extra io.Writer
		if logStderr {
			extra = os.Stderr
		}
		if err := logging.Init("termd", extra); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		defer logging.Close()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logging.SetLevel(cfg.Debug.LogLevel)
		if debugMode {
			logging.SetDebug(true)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, args)
	},
}

func run(ctx context.Context, cfg *config.Config, command []string) error {
	var (
		listener net.Listener
		path     string
	)
	if cfg.IPCSocket {
		if removed, err := registry.PruneStale(registry.SocketDir()); err != nil {
			logging.Warn().Err(err).Msg("failed to prune stale sockets")
		} else if len(removed) > 0 {
			logging.Info().Strs("sockets", removed).Msg("removed stale sockets")
		}

		path = socketPath
		if path == "" {
			path = registry.SocketPath(os.Getpid())
		}

		var err error
		listener, err = registry.Acquire(ctx, path, probeTimeout)
		if err != nil {
			return fmt.Errorf("failed to create control socket: %w", err)
		}
		defer func() {
			if err := registry.Release(listener, path); err != nil {
				logging.Warn().Err(err).Str("socket", path).Msg("failed to remove socket")
			}
		}()
	} else {
		logging.Info().Msg("control socket disabled by ipc_socket: false")
	}

	windows := window.NewManager(cfg, window.ExecSpawner{}, path)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := windows.Shutdown(sctx); err != nil {
			logging.Warn().Err(err).Msg("windows did not shut down cleanly")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if listener != nil {
		srv := server.New(router.New(windows), server.DefaultOptions())
		g.Go(func() error {
			return srv.Serve(gctx, listener)
		})
	}

	if cfg.LiveConfigReload {
		watched := configPath
		if watched == "" {
			watched = config.GetConfigPath()
		}
		g.Go(func() error {
			config.Watch(gctx, watched, config.DefaultWatchInterval, func(next *config.Config, err error) {
				if err != nil {
					logging.Warn().Err(err).Str("path", watched).Msg("ignoring invalid config change")
					return
				}
				logging.SetLevel(next.Debug.LogLevel)
				windows.Reload(next)
			})
			return nil
		})
	}

	if !noWindow {
		w, err := windows.Create(gctx, window.Options{Hold: holdFirst, Command: command})
		if err != nil {
			return fmt.Errorf("failed to open window: %w", err)
		}
		logging.Info().Uint64("window", uint64(w.ID())).Str("socket", path).Msg("termd started")
	}

	g.Go(func() error {
		select {
		case <-windows.Empty():
			return errLastWindowClosed
		case <-gctx.Done():
			return nil
		}
	})

	err := g.Wait()
	if errors.Is(err, errLastWindowClosed) || errors.Is(err, context.Canceled) {
		err = nil
	}
	logging.Info().Msg("termd stopped")
	return err
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config-file", "c", "", "Config file (default $XDG_CONFIG_HOME/termctl/termctl.yaml)")
	rootCmd.Flags().StringVar(&socketPath, "socket", "", "Control socket path (default $XDG_RUNTIME_DIR/termctl-<display>-<pid>.sock)")
	rootCmd.Flags().BoolVar(&logStderr, "log-stderr", false, "Also write logs to stderr")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&noWindow, "no-window", false, "Do not open an initial window")
	rootCmd.Flags().BoolVar(&holdFirst, "hold", false, "Keep the initial window open after its command exits")
	rootCmd.Flags().BoolVarP(&runCommand, "command", "e", false, "Run the remaining arguments in the initial window")
	rootCmd.Flags().SetInterspersed(false)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "termd:", err)
		os.Exit(1)
	}
}
