package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yourusername/termctl/internal/client"
	"github.com/yourusername/termctl/internal/config"
	"github.com/yourusername/termctl/internal/logging"
	"github.com/yourusername/termctl/internal/models"
	"github.com/yourusername/termctl/internal/output"
	"github.com/yourusername/termctl/internal/registry"
)

var (
	socketPath string
	timeout    time.Duration
	jsonOutput bool
	noColor    bool
	debugMode  bool

	// create-window flags
	holdWindow       bool
	workingDirectory string
	commandMode      bool
	commandArgs      []string

	// msg config flags
	windowTarget windowTargetValue
	resetConfig  bool

	keyColor = color.New(color.FgYellow)
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "termctl",
	Short: "Control a running termd instance",
	Long: `termctl talks to a running termd over its control socket.

It can open new windows and change the configuration of live windows
without restarting them. Inside a termd window the socket and window id
are picked up from TERMCTL_SOCKET and TERMCTL_WINDOW_ID.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// MARK: - Messages

// msgCmd is the parent command for control messages
var msgCmd = &cobra.Command{
	Use:   "msg",
	Short: "Send a control message to a running instance",
}

// createWindowCmd opens a new window
var createWindowCmd = &cobra.Command{
	Use:   "create-window [--hold] [-d dir] [-e command [args...]]",
	Short: "Open a new window",
	Long: `Opens a new window in the running instance.

Everything after -e is taken verbatim as the command and its arguments.`,
	Example: `  termctl msg create-window -d ~/src
  termctl msg create-window --hold -e make test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if commandMode {
			args = commandArgs
		}
		cw, err := buildCreateWindow(workingDirectory, holdWindow, commandMode, args)
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.CreateWindow(cmd.Context(), cw)
		if jsonOutput {
			return printResult(id, err)
		}
		if err != nil {
			return err
		}
		output.Success(os.Stdout, "window %d created", id)
		return nil
	},
}

// msgConfigCmd changes the configuration of live windows
var msgConfigCmd = &cobra.Command{
	Use:   "config [-w id] [-r] key=value...",
	Short: "Update configuration of running windows",
	Long: `Updates configuration options of live windows without touching the
config file. Keys are dotted paths as listed by 'termctl config keys'.

Without -w the window from TERMCTL_WINDOW_ID is targeted, or every window
when that is unset. Use -w -1 to target every window explicitly.`,
	Example: `  termctl msg config cursor.style=Beam
  termctl msg config -w -1 font.size=14 colors.primary.background='#000000'
  termctl msg config --reset`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := windowTarget
		if !target.set {
			var err error
			if target, err = targetFromEnv(); err != nil {
				return err
			}
		}

		uc, err := buildUpdateConfig(target.target, resetConfig, args)
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		err = c.UpdateConfig(cmd.Context(), uc)
		if jsonOutput {
			return printResult(0, err)
		}
		if err != nil {
			return err
		}
		output.Success(os.Stdout, "config updated")
		if len(uc.Options) > 0 {
			applied := make([]config.Option, len(uc.Options))
			for i, opt := range uc.Options {
				applied[i] = config.Option{Key: opt.Key, Value: opt.Value}
			}
			output.PrintOptionsTable(os.Stdout, applied)
		}
		return nil
	},
}

// newClient resolves the endpoint from --socket or the environment.
func newClient() (*client.Client, error) {
	endpoint, err := registry.Resolve(socketPath)
	if err != nil {
		return nil, err
	}
	c := client.NewClient(endpoint, timeout)
	logging.Debug().Str("socket", c.Endpoint().Path).Dur("timeout", timeout).Msg("resolved endpoint")
	return c, nil
}

// result is what msg commands print with --json
type result struct {
	OK       bool              `json:"ok"`
	WindowID models.WindowID   `json:"windowId,omitempty"`
	Error    *models.ErrorInfo `json:"error,omitempty"`
}

// printResult prints the outcome of a msg command as JSON. Failures the
// server reported are printed too; err is returned unchanged.
func printResult(id models.WindowID, err error) error {
	var replyErr *client.ReplyError
	switch {
	case err == nil:
		return printJSON(result{OK: true, WindowID: id})
	case errors.As(err, &replyErr):
		info := replyErr.Info
		_ = printJSON(result{Error: &info})
	}
	return err
}

// splitCommand cuts argv at the -e of create-window. Everything after it is
// the command verbatim, flags included, so cobra only sees what precedes it.
func splitCommand(args []string) (head, command []string) {
	inCreate := false
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--":
			return args, nil
		case arg == "create-window":
			inCreate = true
		case valueFlags[arg]:
			i++
		case inCreate && (arg == "-e" || arg == "--command"):
			return args[:i+1], slices.Clone(args[i+1:])
		}
	}
	return args, nil
}

// valueFlags are the flags before -e that consume the next argument.
var valueFlags = map[string]bool{
	"-d": true, "--working-directory": true,
	"-s": true, "--socket": true,
	"--timeout": true,
}

// buildCreateWindow turns create-window flags and arguments into a message.
func buildCreateWindow(dir string, hold, command bool, args []string) (models.CreateWindow, error) {
	cw := models.CreateWindow{Hold: hold}

	if dir != "" {
		abs, err := filepath.Abs(expandHome(dir))
		if err != nil {
			return cw, usageErrorf("working directory %q: %v", dir, err)
		}
		cw.WorkingDirectory = abs
	}

	switch {
	case command && len(args) == 0:
		return cw, usageErrorf("-e requires a command")
	case !command && len(args) > 0:
		return cw, usageErrorf("unexpected argument %q (use -e to pass a command)", args[0])
	case command:
		cw.Command = append([]string(nil), args...)
	}

	if err := cw.Validate(); err != nil {
		return cw, &client.UsageError{Err: err}
	}
	return cw, nil
}

// buildUpdateConfig turns msg config arguments into a message.
func buildUpdateConfig(target models.WindowTarget, reset bool, args []string) (models.UpdateConfig, error) {
	uc := models.UpdateConfig{Target: target, Reset: reset}

	opts, err := config.ParseOptions(args)
	if err != nil {
		return uc, &client.UsageError{Err: err}
	}
	for _, opt := range opts {
		uc.Options = append(uc.Options, models.ConfigOption{Key: opt.Key, Value: opt.Value})
	}

	if err := uc.Validate(); err != nil {
		return uc, &client.UsageError{Err: err}
	}
	return uc, nil
}

func targetFromEnv() (windowTargetValue, error) {
	raw := strings.TrimSpace(os.Getenv(registry.WindowIDEnv))
	if raw == "" {
		return windowTargetValue{target: models.TargetAll()}, nil
	}
	var v windowTargetValue
	if err := v.Set(raw); err != nil {
		return v, usageErrorf("%s: %v", registry.WindowIDEnv, err)
	}
	return v, nil
}

var _ pflag.Value = (*windowTargetValue)(nil)

// windowTargetValue is the -w flag: a window id, or -1 for every window.
type windowTargetValue struct {
	target models.WindowTarget
	set    bool
}

func (v *windowTargetValue) String() string {
	if !v.set {
		return ""
	}
	return v.target.String()
}

func (v *windowTargetValue) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "all" {
		v.target, v.set = models.TargetAll(), true
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid window id %q", s)
	}
	switch {
	case id == -1:
		v.target = models.TargetAll()
	case id > 0:
		v.target = models.TargetWindow(models.WindowID(id))
	default:
		return fmt.Errorf("invalid window id %d", id)
	}
	v.set = true
	return nil
}

func (v *windowTargetValue) Type() string {
	return "id"
}

// MARK: - Config Commands

// configCmd is the parent command for local config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
	Long:  `Commands for listing config keys and showing or validating config files.`,
}

// configKeysCmd lists the keys msg config accepts
var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := config.Schema()
		if jsonOutput {
			return printJSON(fields)
		}
		output.PrintSchemaTable(os.Stdout, fields, output.TerminalWidth())
		return nil
	},
}

// configShowCmd shows the effective file configuration
var configShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show configuration with defaults applied",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(firstArg(args))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if jsonOutput {
			return printJSON(cfg)
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

// configValidateCmd validates config file
var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := firstArg(args)
		if path == "" {
			path = config.GetConfigPath()
		}

		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		output.Success(os.Stdout, "Configuration is valid")
		keyColor.Print("  File: ")
		fmt.Println(path)
		keyColor.Print("  Shell: ")
		program, shellArgs := cfg.ShellProgram()
		fmt.Println(strings.TrimSpace(program + " " + strings.Join(shellArgs, " ")))
		return nil
	},
}

// configInitCmd creates default config
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()

		// Check if file exists
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}

		cfg := config.Default()
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		data = append([]byte("# termd configuration. List keys with: termctl config keys\n"), data...)

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		output.Success(os.Stdout, "Created default config at: %s", path)
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &client.UsageError{Err: err}
	})

	msgCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "", "Socket path (default $"+registry.SocketEnv+")")
	msgCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "Request timeout")

	createWindowCmd.Flags().BoolVar(&holdWindow, "hold", false, "Keep the window open after the command exits")
	createWindowCmd.Flags().StringVarP(&workingDirectory, "working-directory", "d", "", "Start the shell in this directory")
	createWindowCmd.Flags().BoolVarP(&commandMode, "command", "e", false, "Run the remaining arguments as the command")

	msgConfigCmd.Flags().VarP(&windowTarget, "window-id", "w", "Window to update, -1 for all (default $"+registry.WindowIDEnv+")")
	msgConfigCmd.Flags().BoolVarP(&resetConfig, "reset", "r", false, "Drop earlier overrides before applying options")

	rootCmd.AddCommand(msgCmd)
	msgCmd.AddCommand(createWindowCmd)
	msgCmd.AddCommand(msgConfigCmd)

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)

	// Disable color if requested, enable debug logging if requested
	cobra.OnInitialize(func() {
		if noColor {
			color.NoColor = true
		}
		if debugMode {
			logging.SetDebug(true)
		}
	})
}

func main() {
	// Initialize logging; the client works without it
	_ = logging.Init("termctl", nil)
	defer logging.Close()

	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the process exit code.
func run(args []string) int {
	args, commandArgs = splitCommand(args)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return client.ExitOK
	}

	code := client.ExitCode(err)
	if code == client.ExitFailure && isCobraUsage(err) {
		code = client.ExitUsage
	}
	logging.Debug().Err(err).Int("exit", code).Msg("command failed")
	printError(err.Error())
	return code
}

// isCobraUsage recognizes argument errors cobra reports as plain errors.
func isCobraUsage(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.Contains(msg, "arg(s)")
}

// Helper functions

func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printError(msg string) {
	if noColor {
		fmt.Fprintln(os.Stderr, "Error:", msg)
		return
	}
	output.Failure(os.Stderr, msg)
}

func usageErrorf(format string, args ...any) error {
	return &client.UsageError{Err: fmt.Errorf(format, args...)}
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
