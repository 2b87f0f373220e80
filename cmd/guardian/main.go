// Command guardian is a security decision gate for autonomous coding
// agents. It rules on shell commands, file reads, file writes, and
// filesystem searches before the host executes them.
//
// Modes:
//
//	guardian hook    read one tool call from stdin, rule on stdout
//	guardian serve   long-running decision service on a local socket
//	guardian check   rule on a command given as arguments
//	guardian stop    stop a backgrounded decision service
//	guardian status  report whether the service is running
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxkoreaexport/polyakov-claude-skills/internal/audit"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/boundary"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/checks"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/config"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/fileutil"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/guidance"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/handlers"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/logger"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/server"
	"github.com/maxkoreaexport/polyakov-claude-skills/internal/state"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "1.0.0"

var log = logger.New("main")

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hook":
			runHook(os.Args[2:])
		case "serve":
			runServe(os.Args[2:])
		case "check":
			runCheck(os.Args[2:])
		case "stop":
			if err := state.Stop(); err != nil {
				fatal(err)
			}
			fmt.Println("guardian stopped")
		case "status":
			if running, pid := state.IsRunning(); running {
				fmt.Printf("guardian is running (pid %d)\n", pid)
			} else {
				fmt.Println("guardian is not running")
				os.Exit(1)
			}
		case "version", "-v", "--version":
			fmt.Printf("guardian %s\n", Version)
		case "help", "-h", "--help":
			printUsage()
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
		return
	}
	// Hosts exec the binary with no arguments from their hook config.
	runHook(nil)
}

func printUsage() {
	fmt.Print(`guardian - security decision gate for agent tool calls

Usage:
  guardian [hook]              rule on one tool call from stdin
  guardian serve [flags]       run the decision service
  guardian check [flags] CMD   rule on a shell command
  guardian stop                stop a backgrounded service
  guardian status              report whether the service is running
  guardian version             print version

Flags (hook, serve, check):
  -config PATH    config file (default ~/.guardian/config.yaml)

Flags (serve):
  -socket PATH    socket path override
  -d              run the service in the background

Environment:
  GUARDIAN_PROJECT_DIR, GUARDIAN_CONFIG, GUARDIAN_LOG_LEVEL,
  GUARDIAN_LOG_FILE, GUARDIAN_AUDIT_KEY, GUARDIAN_AUDIT_DB,
  GUARDIAN_SOCKET
`)
}

// setup loads config, applies env overrides, compiles the policy, and
// builds the gate. A policy that does not compile is fatal: ruling on a
// partially compiled policy would silently drop protections.
func setup(configPath string) (*config.Config, *handlers.Gate, error) {
	env, err := config.LoadEnvOverrides()
	if err != nil {
		return nil, nil, err
	}
	if configPath == "" {
		configPath = env.ConfigPath
	}
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	env.Apply(cfg)

	compiled, err := cfg.Compile()
	if err != nil {
		return nil, nil, err
	}

	root := config.ResolveProjectRoot(cfg)
	b, err := boundary.New(root, cfg.Boundary.AllowedPaths)
	if err != nil {
		return nil, nil, fmt.Errorf("project boundary: %w", err)
	}
	return cfg, handlers.New(compiled, b), nil
}

// configureLogging applies log settings. In hook mode stdout is
// protocol, so without a log file diagnostics are silenced entirely.
func configureLogging(cfg *config.Config, hookMode bool) {
	if cfg.Logging.NoColor {
		logger.SetColored(false)
	}
	if cfg.Logging.File != "" {
		f, err := fileutil.SecureOpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY)
		if err == nil {
			logger.SetOutput(f)
			logger.SetColored(false)
		}
	} else if hookMode {
		logger.SetGlobalLevel(logger.LevelSilent)
		return
	}
	logger.SetGlobalLevelFromString(cfg.Logging.Level)
}

// hookRequest is the host's stdin payload for one tool call.
type hookRequest struct {
	ToolName  string             `json:"tool_name"`
	ToolInput handlers.ToolInput `json:"tool_input"`
}

// runHook rules on a single tool call. Allow is silence plus exit 0;
// Ask/Deny emit one JSON object on stdout. The exit code stays 0 in all
// cases: the ruling travels in the payload, and a nonzero exit would
// read as a gate crash.
func runHook(args []string) {
	fs := flag.NewFlagSet("hook", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	cfg, gate, err := setup(*configPath)
	if err != nil {
		fatal(err)
	}
	configureLogging(cfg, true)

	res, tool := evaluateHookInput(gate, os.Stdin)
	recordDecision(cfg, tool, res)

	data, emit, err := guidance.Render(res)
	if err != nil {
		fatal(err)
	}
	if emit {
		fmt.Println(string(data))
	}
}

// evaluateHookInput decodes one request and rules on it, returning the
// result and the tool name for the audit trail. Undecodable input asks:
// the gate cannot vouch for what it cannot read.
func evaluateHookInput(gate *handlers.Gate, r io.Reader) (checks.CheckResult, string) {
	var req hookRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return checks.CheckResult{
			Decision: checks.Ask,
			Reason:   "Could not parse the tool call payload",
			Guidance: "The hook input was not valid JSON. Confirm the operation manually.",
		}, "unknown"
	}
	return gate.Dispatch(req.ToolName, req.ToolInput), req.ToolName
}

// recordDecision audits one ruling. The audit trail is best-effort and
// never changes a decision already made.
func recordDecision(cfg *config.Config, tool string, res checks.CheckResult) {
	if !cfg.Audit.Enabled {
		return
	}
	if res.Allowed() && !cfg.Audit.RecordAllowed {
		return
	}
	store, err := audit.Open(cfg.Audit.DBPath, cfg.Audit.EncryptionKey)
	if err != nil {
		log.Warn("audit store unavailable: %v", err)
		return
	}
	defer store.Close()

	rec := audit.Record{
		Tool:     tool,
		Kind:     "hook",
		Decision: res.Decision.String(),
		Origin:   res.Origin,
		Reason:   res.Reason,
	}
	if err := store.Insert(rec); err != nil {
		log.Warn("audit insert failed: %v", err)
	}
	if _, err := store.Prune(cfg.Audit.RetentionDays); err != nil {
		log.Warn("audit prune failed: %v", err)
	}
}

// runServe starts the long-running decision service.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	socketPath := fs.String("socket", "", "socket path override")
	detach := fs.Bool("d", false, "run the service in the background")
	daemonMode := fs.Bool("daemon-mode", false, "internal: this process is the backgrounded service")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if *detach {
		if running, pid := state.IsRunning(); running {
			fatal(fmt.Errorf("guardian is already running (pid %d)", pid))
		}
		// Rebuild the child args without -d so it does not re-detach.
		childArgs := []string{"serve"}
		if *configPath != "" {
			childArgs = append(childArgs, "-config", *configPath)
		}
		if *socketPath != "" {
			childArgs = append(childArgs, "-socket", *socketPath)
		}
		pid, err := state.Daemonize(childArgs)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("guardian started (pid %d), log at %s\n", pid, state.LogFileDisplay())
		return
	}

	cfg, gate, err := setup(*configPath)
	if err != nil {
		fatal(err)
	}
	configureLogging(cfg, false)

	if *daemonMode || state.IsDaemonMode() {
		if err := state.WritePID(); err != nil {
			fatal(err)
		}
		defer state.CleanupPID()
	}

	socket := cfg.Server.SocketPath
	if *socketPath != "" {
		socket = *socketPath
	}
	if socket == "" {
		socket = state.SocketFile()
	}

	var store *audit.Store
	if cfg.Audit.Enabled {
		store, err = audit.Open(cfg.Audit.DBPath, cfg.Audit.EncryptionKey)
		if err != nil {
			fatal(fmt.Errorf("audit store: %w", err))
		}
		defer store.Close()
		if _, err := store.Prune(cfg.Audit.RetentionDays); err != nil {
			log.Warn("audit prune failed: %v", err)
		}
	}

	srv := server.New(gate, store, server.Options{
		SocketPath:    socket,
		RecordAllowed: cfg.Audit.RecordAllowed,
	})

	if cfg.Server.Watch {
		resolvedConfig := *configPath
		if resolvedConfig == "" {
			resolvedConfig = config.DefaultConfigPath()
		}
		watcher, err := server.NewWatcher(srv, resolvedConfig, func() (*handlers.Gate, error) {
			_, g, err := setup(resolvedConfig)
			return g, err
		})
		if err != nil {
			log.Warn("config watcher unavailable: %v", err)
		} else {
			if err := watcher.Start(); err != nil {
				log.Warn("config watcher: %v", err)
			}
			defer watcher.Stop() //nolint:errcheck // shutdown path
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		fatal(err)
	}
}

// runCheck rules on a command given on the command line and prints a
// human-readable verdict. Exit codes: 0 allow, 1 ask, 2 deny.
func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	tool := fs.String("tool", "Bash", "tool name (Bash, Read, Write, Glob, Grep)")
	fs.Parse(args) //nolint:errcheck // ExitOnError

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: guardian check [-tool NAME] COMMAND-OR-PATH")
		os.Exit(2)
	}
	target := fs.Arg(0)

	cfg, gate, err := setup(*configPath)
	if err != nil {
		fatal(err)
	}
	configureLogging(cfg, false)

	input := handlers.ToolInput{}
	switch *tool {
	case "Bash":
		input.Command = target
	case "Read", "Write":
		input.FilePath = target
	case "Glob", "Grep":
		input.Pattern = target
	default:
		fmt.Fprintf(os.Stderr, "unknown tool %q\n", *tool)
		os.Exit(2)
	}

	res := gate.Dispatch(*tool, input)
	fmt.Printf("%s\n", res.Decision)
	if res.Reason != "" {
		fmt.Printf("reason: %s\n", res.Reason)
	}
	if res.Guidance != "" {
		fmt.Printf("guidance: %s\n", res.Guidance)
	}

	switch res.Decision {
	case checks.Ask:
		os.Exit(1)
	case checks.Deny:
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "guardian: %v\n", err)
	os.Exit(1)
}
