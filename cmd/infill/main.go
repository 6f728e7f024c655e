// Package main is the entry point for the infill CLI, a fill-in-middle
// completion client for llama.cpp, DeepSeek, and Ollama backends.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/infill/internal/config"
	"github.com/normanking/infill/internal/logging"
	"github.com/normanking/infill/internal/provider"
	"github.com/normanking/infill/internal/tokenizer"
	"github.com/normanking/infill/internal/ui/prompt"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "infill",
		Short: "Infill - fill-in-middle code completion across local and hosted models",
		Long: `Infill completes the gap between a prefix and a suffix using a
configured model backend: a local llama.cpp server, the DeepSeek API,
or a local Ollama server.

Configure a model:   infill configure ollama mycoder
Run a completion:    infill complete mycoder --prefix "func add(" --suffix ")"`,
		PersistentPreRunE: initLogging,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "model config file path (default ~/.infill/models.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("infill v%s\n", version)
		},
	})

	rootCmd.AddCommand(configureCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(tokenizeCmd())
	rootCmd.AddCommand(detokenizeCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(metricsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	logDir := filepath.Join(home, ".infill", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile := filepath.Join(logDir, fmt.Sprintf("infill_%s.log", timestamp))

	cfg := logging.DefaultConfig()
	cfg.FilePath = logFile

	log = logging.New(cfg)
	logging.SetGlobal(log)
	if verbose {
		logging.EnableVerbose()
	}

	log.Debug("session started, logging to %s", logFile)
	return nil
}

func openDeps() (provider.Deps, error) {
	path := cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return provider.Deps{}, err
		}
	}

	store, err := config.Open(path)
	if err != nil {
		return provider.Deps{}, fmt.Errorf("open config store: %w", err)
	}

	return provider.Deps{
		Store:      store,
		Tokenizers: tokenizer.NewCache(),
	}, nil
}

// signalContext turns Ctrl+C into context cancellation for the command body.
func signalContext(cmd *cobra.Command) (ctx context.Context, stop func()) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure <provider> <nickname>",
		Short: "Interactively configure a model backend",
		Long: fmt.Sprintf(`Configure a model backend under a nickname of your choice.

Supported providers: %s`, strings.Join(provider.ProviderIDs(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			providerID, nickname := args[0], args[1]

			deps, err := openDeps()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			// The prompts own the terminal; keep log lines in the file.
			logging.DisableConsoleOutput()
			err = provider.Configure(ctx, providerID, nickname, prompt.New(), deps)
			logging.EnableConsoleOutput()
			switch {
			case err == nil:
				fmt.Printf("Configured %q (%s)\n", nickname, providerID)
				return nil
			case errors.Is(err, provider.ErrUserCancelled) || provider.IsCancellation(err):
				fmt.Fprintln(os.Stderr, "Configuration cancelled.")
				return err
			default:
				return err
			}
		},
	}
}

func completeCmd() *cobra.Command {
	var (
		prefix      string
		suffix      string
		maxTokens   int
		stop        []string
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "complete <nickname>",
		Short: "Run one fill-in-middle completion",
		Long: `Run one completion against a configured model. The prefix is read
from --prefix, or from stdin when the flag is absent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prefix == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read prefix from stdin: %w", err)
				}
				prefix = string(data)
			}

			deps, err := openDeps()
			if err != nil {
				return err
			}

			p, err := provider.New(args[0], deps)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			if err := p.Initialize(ctx); err != nil {
				return fmt.Errorf("initialize %s: %w", p.Name(), err)
			}

			out, err := p.Invoke(ctx, &provider.Request{
				Prefix:      prefix,
				Suffix:      suffix,
				MaxTokens:   maxTokens,
				Stop:        stop,
				Temperature: temperature,
			})
			if provider.IsCancellation(err) {
				fmt.Fprintln(os.Stderr, "Cancelled.")
				return err
			}
			if err != nil {
				return err
			}

			fmt.Print(out)
			log.Debug("%s", provider.GlobalRegistry().Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "text before the gap (stdin when empty)")
	cmd.Flags().StringVar(&suffix, "suffix", "", "text after the gap")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 256, "maximum tokens to generate")
	cmd.Flags().StringArrayVar(&stop, "stop", nil, "stop sequence (repeatable)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature (backend default when 0)")
	return cmd
}

func tokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize <nickname> <text>",
		Short: "Encode text into token IDs using a configured model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps()
			if err != nil {
				return err
			}

			p, err := provider.New(args[0], deps)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			if err := p.Initialize(ctx); err != nil {
				return err
			}

			tokens, err := p.Encode(ctx, args[1])
			if err != nil {
				return err
			}

			parts := make([]string, len(tokens))
			for i, tok := range tokens {
				parts[i] = strconv.Itoa(tok)
			}
			fmt.Println(strings.Join(parts, " "))
			return nil
		},
	}
}

func detokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detokenize <nickname> <id...>",
		Short: "Decode token IDs back into text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := make([]int, 0, len(args)-1)
			for _, raw := range args[1:] {
				tok, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid token id %q", raw)
				}
				tokens = append(tokens, tok)
			}

			deps, err := openDeps()
			if err != nil {
				return err
			}

			p, err := provider.New(args[0], deps)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			if err := p.Initialize(ctx); err != nil {
				return err
			}

			text, err := p.Decode(ctx, tokens)
			if err != nil {
				return err
			}

			fmt.Println(text)
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage configured models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps()
			if err != nil {
				return err
			}

			models := deps.Store.List()
			if len(models) == 0 {
				fmt.Println("No models configured. Run: infill configure <provider> <nickname>")
				return nil
			}

			for _, m := range models {
				model := m.Model
				if model == "" {
					model = "(server default)"
				}
				fmt.Printf("%-16s %-10s %-24s ctx=%d\n", m.Nickname, m.Provider, model, m.ContextWindow)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <nickname>",
		Short: "Remove a configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := openDeps()
			if err != nil {
				return err
			}

			if _, err := deps.Store.Get(args[0]); err != nil {
				return err
			}
			if err := deps.Store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %q\n", args[0])
			return nil
		},
	})

	return cmd
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show per-model usage metrics for this process",
		Long: `Show call counts, error counts, and latency per configured model.

Metrics are collected in-process and are not persisted, so this command
reports activity from the current invocation only. One-shot commands print
their own summary at debug level (run complete with --verbose to see it);
this command is useful when infill is embedded in a long-lived session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(provider.GlobalRegistry().Summary())
			return nil
		},
	}
}
