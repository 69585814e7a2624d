package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/efebarandurmaz/chatcli/internal/config"
	"github.com/efebarandurmaz/chatcli/internal/llm"
	"github.com/efebarandurmaz/chatcli/internal/llm/openai"
	"github.com/efebarandurmaz/chatcli/internal/logging"
	"github.com/efebarandurmaz/chatcli/internal/observability"
	"github.com/efebarandurmaz/chatcli/internal/runner"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code. Every
// error is reported once on stderr.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := logging.New(stderr, "error", "console")
		logger.Error().Err(err).Msg("chatcli failed")
		return 1
	}
	return 0
}

// newRootCmd builds the command tree writing replies to stdout and
// diagnostics to stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	factory := llm.NewFactory()
	openai.Register(factory)

	rootCmd := &cobra.Command{
		Use:           "chatcli <prompt>",
		Short:         "Send one prompt to a chat-completion API and print the reply",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, factory, configPath, args[0], stdout, stderr)
		},
	}
	// stdout carries the reply only; help and usage go to stderr.
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file path (YAML)")
	pf.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded when present")
	config.RegisterFlags(pf)

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printProviders(stdout)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = stdout.Write(out)
			return err
		},
	}

	rootCmd.AddCommand(providersCmd, configCmd)
	return rootCmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func runChat(cmd *cobra.Command, factory *llm.ProviderFactory, configPath, prompt string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return &runner.Error{Kind: runner.KindConfig, Op: "load config", Err: err}
	}
	req, err := cfg.ForPrompt(prompt)
	if err != nil {
		return &runner.Error{Kind: runner.KindConfig, Op: "load config", Err: err}
	}

	provider, err := factory.Create(llm.ProviderConfig{
		Provider:       req.Provider,
		APIKey:         req.APIKey,
		OrganizationID: req.OrganizationID,
		Model:          req.Model,
		BaseURL:        req.BaseURL,
	})
	if err != nil {
		return &runner.Error{Kind: runner.KindConfig, Op: "create provider", Err: err}
	}

	// Past this point failures are not usage mistakes.
	cmd.SilenceUsage = true

	logger := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	ctx := cmd.Context()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "chatcli",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Debug().Err(err).Msg("tracer shutdown")
			}
		}()
	}

	logger.Debug().Str("provider", provider.Name()).Str("model", req.Model).Msg("using LLM provider")
	return runner.New(provider, stdout, runner.WithLogger(&logger)).Run(ctx, req)
}

func printProviders(w io.Writer) {
	names := make([]string, 0, len(llm.KnownProviders))
	for name := range llm.KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available LLM providers:")
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, llm.KnownProviders[name])
	}
	fmt.Fprintln(w, "  custom         (set --base-url to any OpenAI-compatible endpoint)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configure with flags, a config file or environment:")
	fmt.Fprintln(w, "  CHATCLI_LLM_PROVIDER=groq")
	fmt.Fprintln(w, "  API_KEY=gsk_...")
	fmt.Fprintln(w, "  CHATCLI_LLM_MODEL=llama-3.3-70b-versatile")
}
