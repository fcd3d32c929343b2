// grounded-context-mcp is an MCP server that returns grounded, file-backed
// context from a local repository.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spetr/grounded-context-mcp/internal/config"
	"github.com/spetr/grounded-context-mcp/internal/corpus"
	"github.com/spetr/grounded-context-mcp/internal/mcp"
	"github.com/spetr/grounded-context-mcp/internal/recommend"
	"github.com/spetr/grounded-context-mcp/internal/toolset"
	"github.com/spetr/grounded-context-mcp/internal/watch"
	"github.com/spetr/grounded-context-mcp/pkg/types"
)

var (
	version   = "0.1.0"
	cfgFile   string
	rootDir   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "grounded-context-mcp",
	Short: "MCP server for grounded repository context",
	Long: `grounded-context-mcp is an MCP server that helps coding assistants
retrieve grounded, file-backed context from a local repository.

It provides:
- Lexical repository search (search_repo)
- Git branch, status and last-commit insights (git_insights)
- Literal file content under a character budget (get_grounded_context)
- Intent-aware file recommendations with explanations (recommend_context)

Everything runs locally. No network access is required.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel, logFormat)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("grounded-context-mcp %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("stdio")
		return runServe(stdio)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		globs, _ := cmd.Flags().GetStringSlice("glob")
		return runSearch(cmd.Context(), args[0], limit, globs)
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <query>",
	Short: "Recommend files and grounded context for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := recommendRequest(cmd, args[0])
		if err != nil {
			return err
		}
		return runRecommend(cmd.Context(), req)
	},
}

var contextCmd = &cobra.Command{
	Use:   "context <path>...",
	Short: "Print grounded content for files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxChars, _ := cmd.Flags().GetInt("max-chars")
		return runContext(cmd.Context(), args, maxChars)
	},
}

var gitCmd = &cobra.Command{
	Use:   "git",
	Short: "Show git insights for the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd.Context())
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the environment descriptor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printJSON(toolset.NewLocal(cfg, slog.Default()).EnvSpecs())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools [name]",
	Short: "List registered MCP tools and their schemas",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemas, _ := cmd.Flags().GetBool("schemas")
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return runTools(name, schemas)
	},
}

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Call an MCP tool directly (for debugging)",
	Long: `Call an MCP tool by name with JSON arguments.

Examples:
  grounded-context-mcp call recommend_context '{"query": "auth error", "intent": "debug"}'
  grounded-context-mcp call get_grounded_context '{"paths": ["go.mod"]}'
  grounded-context-mcp call env_specs`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonArgs := "{}"
		if len(args) > 1 {
			jsonArgs = args[1]
		}
		return runCall(cmd.Context(), args[0], jsonArgs)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <query>",
	Short: "Re-run recommend whenever files change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := recommendRequest(cmd, args[0])
		if err != nil {
			return err
		}
		debounceMs, _ := cmd.Flags().GetInt("debounce")
		return runWatch(req, time.Duration(debounceMs)*time.Millisecond)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigValidate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: <root>/.grounded-context/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", ".", "repository root")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	serveCmd.Flags().Bool("stdio", true, "use stdio transport (for MCP)")

	searchCmd.Flags().IntP("limit", "l", 10, "maximum results")
	searchCmd.Flags().StringSliceP("glob", "g", nil, "only search files matching glob (repeatable)")

	for _, cmd := range []*cobra.Command{recommendCmd, watchCmd} {
		cmd.Flags().StringP("intent", "i", "implement", "task intent (implement, debug, validate)")
		cmd.Flags().IntP("limit", "l", recommend.DefaultMaxResults, "maximum ranked files")
		cmd.Flags().Int("context-files", recommend.DefaultMaxFilesForContext, "files included as grounded context")
		cmd.Flags().Int("max-chars", 0, "grounded context character budget (default from config)")
	}
	watchCmd.Flags().Int("debounce", 500, "debounce time in milliseconds")

	contextCmd.Flags().Int("max-chars", 0, "character budget (default from config)")

	toolsCmd.Flags().Bool("schemas", false, "include input and output JSON schemas")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(gitCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(levelName, format string) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	// stdout carries MCP traffic and command output; logs go to stderr.
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadConfig loads configuration for the selected root. Logging settings
// from the file apply unless overridden on the command line.
func loadConfig() (*config.Config, error) {
	var (
		cfg      *config.Config
		warnings []string
		err      error
	)
	if cfgFile != "" {
		cfg, warnings, err = config.LoadFile(cfgFile)
	} else {
		cfg, warnings, err = config.Load(rootDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range warnings {
		slog.Debug(w)
	}
	if err := config.Check(cfg); err != nil {
		return nil, err
	}

	flags := rootCmd.PersistentFlags()
	if !flags.Changed("log-level") || !flags.Changed("log-format") {
		level, format := logLevel, logFormat
		if !flags.Changed("log-level") {
			level = cfg.Logging.Level
		}
		if !flags.Changed("log-format") {
			format = cfg.Logging.Format
		}
		setupLogging(level, format)
	}
	return cfg, nil
}

func newServer(cfg *config.Config) (*mcp.Server, error) {
	root, err := corpus.ResolveRoot(rootDir)
	if err != nil {
		return nil, err
	}
	return mcp.New(mcp.Config{
		Toolset:     toolset.NewLocal(cfg, slog.Default()),
		Config:      cfg,
		DefaultRoot: root,
		Logger:      slog.Default(),
	})
}

func recommendRequest(cmd *cobra.Command, query string) (recommend.Request, error) {
	intentName, _ := cmd.Flags().GetString("intent")
	intent, err := types.ParseIntent(intentName)
	if err != nil {
		return recommend.Request{}, err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	contextFiles, _ := cmd.Flags().GetInt("context-files")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	return recommend.Request{
		Query:              query,
		Intent:             intent,
		Root:               rootDir,
		MaxResults:         limit,
		MaxFilesForContext: contextFiles,
		MaxChars:           maxChars,
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServe(stdio bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !stdio {
		return fmt.Errorf("only stdio transport is supported")
	}

	server, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("starting MCP server", "root", rootDir, "name", cfg.MCP.Name, "version", cfg.MCP.Version)
	if err := server.ServeStdio(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func runSearch(ctx context.Context, query string, limit int, globs []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	result, err := toolset.NewLocal(cfg, slog.Default()).SearchRepo(ctx, toolset.SearchArgs{
		Query:      query,
		Root:       rootDir,
		MaxResults: limit,
		FileGlobs:  globs,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runRecommend(ctx context.Context, req recommend.Request) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	result, err := toolset.NewLocal(cfg, slog.Default()).RecommendContext(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runContext(ctx context.Context, paths []string, maxChars int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	result, err := toolset.NewLocal(cfg, slog.Default()).GetGroundedContext(ctx, paths, rootDir, maxChars)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runGit(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printJSON(toolset.NewLocal(cfg, slog.Default()).GitInsights(ctx, rootDir))
}

func runTools(name string, schemas bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	server, err := newServer(cfg)
	if err != nil {
		return err
	}

	descriptors := server.Descriptors()
	if name != "" {
		d, err := server.Describe(name)
		if err != nil {
			return err
		}
		descriptors = []mcp.ToolDescriptor{d}
	}

	type toolOutput struct {
		mcp.ToolInfo
		InputSchema  json.RawMessage `json:"inputSchema,omitempty"`
		OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
	}
	out := make([]toolOutput, 0, len(descriptors))
	for _, d := range descriptors {
		entry := toolOutput{ToolInfo: mcp.Summarize(d)}
		if schemas {
			entry.InputSchema = d.InputSchema()
			entry.OutputSchema = d.OutputSchema()
		}
		out = append(out, entry)
	}
	return printJSON(out)
}

func runCall(ctx context.Context, tool, jsonArgs string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	server, err := newServer(cfg)
	if err != nil {
		return err
	}
	if _, err := server.Describe(tool); err != nil {
		return err
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(jsonArgs), &args); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}

	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": tool, "arguments": args},
	})
	if err != nil {
		return err
	}
	return printJSON(server.HandleMessage(ctx, msg))
}

func runWatch(req recommend.Request, debounce time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tools := toolset.NewLocal(cfg, slog.Default())

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context, changed []string) {
		if len(changed) > 0 {
			fmt.Fprintf(os.Stderr, "[watch] %d file(s) changed\n", len(changed))
		}
		result, err := tools.RecommendContext(ctx, req)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("recommend failed", "error", err)
			}
			return
		}
		if err := printJSON(result); err != nil {
			slog.Error("failed to write result", "error", err)
		}
	}

	w, err := watch.New(watch.Config{
		Root:     rootDir,
		Scan:     cfg.Scan,
		Debounce: debounce,
		OnChange: run,
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	run(ctx, nil)
	fmt.Fprintf(os.Stderr, "Watching %s for changes (press Ctrl+C to stop)...\n", w.Root())
	return w.Watch(ctx)
}

func runConfigInit() error {
	path := config.ConfigPath(rootDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(rootDir, config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("Created config at %s\n", path)
	return nil
}

func runConfigShow() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runConfigValidate() error {
	var (
		cfg      *config.Config
		warnings []string
		err      error
	)
	if cfgFile != "" {
		cfg, warnings, err = config.LoadFile(cfgFile)
	} else {
		cfg, warnings, err = config.Load(rootDir)
	}
	if err != nil {
		return err
	}

	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Error: %v\n", e)
		}
		return fmt.Errorf("configuration has %d error(s)", len(errs))
	}

	fmt.Println("Configuration is valid")
	return nil
}
