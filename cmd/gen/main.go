package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanmxa/gencode/internal/client"
	"github.com/yanmxa/gencode/internal/config"
	"github.com/yanmxa/gencode/internal/core"
	"github.com/yanmxa/gencode/internal/hooks"
	"github.com/yanmxa/gencode/internal/log"
	"github.com/yanmxa/gencode/internal/message"
	"github.com/yanmxa/gencode/internal/permission"
	"github.com/yanmxa/gencode/internal/provider"
	"github.com/yanmxa/gencode/internal/session"
	"github.com/yanmxa/gencode/internal/system"
	"github.com/yanmxa/gencode/internal/tool"
	"github.com/yanmxa/gencode/internal/tui"

	// Import providers for registration
	_ "github.com/yanmxa/gencode/internal/provider/anthropic"
	_ "github.com/yanmxa/gencode/internal/provider/google"
	_ "github.com/yanmxa/gencode/internal/provider/openai"
)

var (
	version = "0.1.0"
)

func init() {
	// Load .env file if it exists (silent fail if not found)
	_ = godotenv.Load()

	// Initialize logging (enabled via GEN_DEBUG=1)
	_ = log.Init()
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gen [message]",
	Short: "Gen - AI coding assistant for the terminal",
	Long: `Gen is an open-source AI assistant for the terminal.
Extensible tools, customizable prompts, multi-provider support.

Non-interactive mode:
  gen "your message"       Send a message directly
  echo "message" | gen     Send a message via stdin
  gen -p "prompt"          Use a custom prompt`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		message := getInputMessage(args)

		if message != "" {
			// Non-interactive mode
			if err := runNonInteractive(message); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		// Interactive mode (TUI)
		var err error
		switch {
		case planFlag != "":
			err = tui.RunWithPlanMode(planFlag)
		case continueFlag:
			err = tui.RunWithContinue()
		case resumeFlag:
			err = tui.RunWithResume()
		default:
			err = tui.Run()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// promptFlag is the custom prompt flag
var promptFlag string

// continueFlag resumes the most recent session for the current directory.
// resumeFlag opens the session selector. planFlag starts plan mode with the
// given task. trustFlag sets the PermissionGate's trust mode for
// non-interactive runs.
var (
	continueFlag bool
	resumeFlag   bool
	planFlag     string
	trustFlag    string
)

func init() {
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Custom prompt to send")
	rootCmd.Flags().BoolVarP(&continueFlag, "continue", "c", false, "Resume the most recent session for this directory")
	rootCmd.Flags().BoolVarP(&resumeFlag, "resume", "r", false, "Open the session selector")
	rootCmd.Flags().StringVar(&planFlag, "plan", "", "Start in plan mode with the given task")
	rootCmd.Flags().StringVar(&trustFlag, "trust", "limited", "Permission trust mode for non-interactive runs: off, limited, autoedit, full")
}

// getInputMessage gets input from args, flags, or stdin
func getInputMessage(args []string) string {
	// Check for -p/--prompt flag
	if promptFlag != "" {
		return promptFlag
	}

	// Check for positional arguments
	if len(args) > 0 {
		return strings.Join(args, " ")
	}

	// Check if stdin has data (non-interactive pipe)
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		// Data is being piped in
		reader := bufio.NewReader(os.Stdin)
		data, err := io.ReadAll(reader)
		if err == nil && len(data) > 0 {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// resolveTrustMode maps the --trust flag to a permission.TrustMode,
// defaulting to Limited for an unrecognized value.
func resolveTrustMode(flag string) permission.TrustMode {
	switch strings.ToLower(flag) {
	case "off":
		return permission.Off
	case "autoedit":
		return permission.AutoEdit
	case "full":
		return permission.Full
	default:
		return permission.Limited
	}
}

// toolNamesFromPatterns extracts the tool-name portion of config's
// "Tool(pattern)" rules for Gate's plain tool-name allow/deny lists. The
// path-scoped half of the pattern isn't carried over; Gate's own
// AllowPaths/DenyPaths cover path scoping separately.
func toolNamesFromPatterns(patterns []string) []string {
	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if idx := strings.IndexByte(p, '('); idx >= 0 {
			p = p[:idx]
		}
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

// runNonInteractive drives one turn of the full agent loop for a
// single-shot CLI invocation: load the connected provider, build a
// core.Loop with a PermissionGate and hooks engine, stream the
// conversation to stdout, and persist the exchange to a session.
func runNonInteractive(userMessage string) error {
	ctx := context.Background()
	cwd, _ := os.Getwd()

	providerStore, err := provider.NewStore()
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	var llmProvider provider.LLMProvider
	var model string

	if current := providerStore.GetCurrentModel(); current != nil {
		p, err := provider.GetProvider(ctx, current.Provider, current.AuthMethod)
		if err != nil {
			return fmt.Errorf("provider %s (%s) not available: %w. Run 'gen' and use /provider to connect",
				current.Provider, current.AuthMethod, err)
		}
		llmProvider = p
		model = current.ModelID
	} else {
		for providerName, conn := range providerStore.GetConnections() {
			p, err := provider.GetProvider(ctx, provider.Provider(providerName), conn.AuthMethod)
			if err == nil {
				llmProvider = p
				model = getDefaultModel(providerName, conn.AuthMethod)
				break
			}
		}
	}

	if llmProvider == nil {
		return fmt.Errorf("no provider connected. Run 'gen' and use /provider to connect")
	}

	settings, _ := config.Load()
	if settings == nil {
		settings = config.Default()
	}

	sessionID := fmt.Sprintf("session-%d", time.Now().UnixNano())
	hookEngine := hooks.NewEngine(settings, sessionID, cwd, "")

	gate := permission.NewGateChecker(permission.TrustConfig{
		Mode:              resolveTrustMode(trustFlag),
		AllowTools:        toolNamesFromPatterns(settings.Permissions.Allow),
		DenyTools:         toolNamesFromPatterns(settings.Permissions.Deny),
		AlwaysAsk:         toolNamesFromPatterns(settings.Permissions.Ask),
		RememberApprovals: true,
		ProjectRoot:       cwd,
	})

	loop := &core.Loop{
		System: &system.System{
			Client: &client.Client{Provider: llmProvider, Model: model},
			Cwd:    cwd,
		},
		Client:     &client.Client{Provider: llmProvider, Model: model, MaxTokens: 8192},
		Tool:       &tool.Set{},
		Permission: gate,
		Hooks:      hookEngine,
	}
	loop.AddUser(userMessage, nil)

	hookEngine.ExecuteAsync(hooks.SessionStart, hooks.HookInput{Source: "startup", Model: model})

	result, err := loop.Run(ctx, core.RunOptions{
		OnToolStart: func(tc message.ToolCall) bool {
			fmt.Fprintf(os.Stderr, "→ %s\n", tc.Name)
			return true
		},
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Content)

	if err := persistNonInteractiveSession(sessionID, cwd, model, llmProvider.Name(), loop.Messages()); err != nil {
		log.Logger().Warn("failed to persist non-interactive session", zap.Error(err))
	}

	return nil
}

// persistNonInteractiveSession appends the turn's messages to a Sink
// (crash-safe, append-only) and snapshots the reconstructed session via
// the Store, so --continue/--resume can pick it up later.
func persistNonInteractiveSession(sessionID, cwd, model, providerName string, messages []message.Message) error {
	store, err := session.NewStore()
	if err != nil {
		return err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	sinkDir := filepath.Join(homeDir, ".gen", "sessions", sessionID+"-events")
	sink, err := session.NewSink(sinkDir)
	if err != nil {
		return err
	}

	if err := sink.Append(session.SinkEvent{
		Type: session.EventMetadata,
		Metadata: &session.SessionMetadata{
			ID:       sessionID,
			Provider: providerName,
			Model:    model,
			Cwd:      cwd,
		},
	}); err != nil {
		return err
	}

	for _, m := range messages {
		sm := session.StoredMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Thinking:  m.Thinking,
			Images:    m.Images,
			ToolCalls: m.ToolCalls,
		}
		if m.ToolResult != nil {
			sm.ToolResult = m.ToolResult
		}
		if err := sink.Append(session.SinkEvent{Type: session.EventMessage, Message: &sm}); err != nil {
			return err
		}
	}

	sess, err := sink.Reconstruct()
	if err != nil {
		return err
	}
	sess.Metadata.Title = session.GenerateTitle(sess.Messages)
	return store.Save(sess)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gen version %s\n", version)
	},
}

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show help information",
	Long:  "Display help information about Gen and its commands.",
	Run: func(cmd *cobra.Command, args []string) {
		printHelp()
	},
}

func printHelp() {
	help := `
Gen - AI coding assistant for the terminal

Usage:
  gen [message]              Non-interactive mode with message
  gen                        Start interactive chat mode
  gen [command]              Run a command

Non-interactive Mode:
  gen "your message"         Send a message directly
  echo "message" | gen       Send a message via stdin
  gen -p "prompt"            Use a custom prompt
  gen --trust full "message" Run tools without asking

Commands:
  version      Print the version number
  help         Show this help message

Interactive Mode:
  Enter        Send message
  Alt+Enter    Insert newline
  Up/Down      Navigate input history
  Esc          Stop AI response
  Ctrl+C       Clear input / Quit

Interactive Commands:
  /provider    Select and connect to a provider
  /model       Select a model
  /clear       Clear chat history
  /help        Show help

Flags:
  -c, --continue   Resume the most recent session for this directory
  -r, --resume     Open the session selector
  --plan <task>    Start in plan mode with the given task

Examples:
  gen                        Start interactive chat
  gen "Explain this code"    Quick question
  cat file.go | gen "Review" Review file via pipe
  gen --continue              Resume the last session
  gen version                Show version

For more information, visit: https://github.com/yanmxa/gencode
`
	fmt.Println(help)
}

// getDefaultModel returns the default model for a provider and auth method
func getDefaultModel(providerName string, authMethod provider.AuthMethod) string {
	switch providerName {
	case "anthropic":
		if authMethod == provider.AuthVertex {
			return "claude-sonnet-4-5@20250929" // Vertex AI format
		}
		return "claude-sonnet-4-20250514" // API key format
	case "openai":
		return "gpt-4o"
	case "google":
		return "gemini-2.0-flash"
	default:
		return "claude-sonnet-4-20250514"
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(helpCmd)
	rootCmd.SetHelpCommand(helpCmd)
}
