// Package cli builds the ochat command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhouzirui/ochat/internal/config"
	"github.com/zhouzirui/ochat/internal/render"
	"github.com/zhouzirui/ochat/internal/repl"
	"github.com/zhouzirui/ochat/internal/service/interpreter"
	"github.com/zhouzirui/ochat/internal/system"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	model      string
	ollamaURL  string
	logDir     string
	historyDB  string
	autoRoute  bool
	debug      bool
}

// apply overlays flags the user set on top of cfg.
func (f *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.model != "" {
		if cfg.AI.Provider == config.ProviderArk {
			cfg.AI.Ark.Model = f.model
		} else {
			cfg.AI.Ollama.Model = f.model
		}
	}
	if f.ollamaURL != "" {
		cfg.AI.Ollama.BaseURL = strings.TrimRight(f.ollamaURL, "/")
	}
	if f.logDir != "" {
		cfg.Log.Dir = f.logDir
	}
	if f.historyDB != "" {
		cfg.Log.HistoryDB = f.historyDB
	}
	if cmd.Flags().Changed("auto-route") {
		cfg.AutoRoute = f.autoRoute
	}
}

func (f *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	return cfg, nil
}

// NewRootCmd returns the ochat command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var plain bool

	cmd := &cobra.Command{
		Use:   "ochat",
		Short: "Terminal chat agent backed by Ollama with a code-execution mode",
		Long: "ochat answers chat messages with a local Ollama model and runs /oi tasks " +
			"through a code interpreter. Every exchange is appended to a JSON log.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			system.SetDebug(flags.debug)
			if err := godotenv.Load(); err != nil {
				log.Debug("no .env file loaded, using process environment", "err", err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, flags, plain)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file (default $OCHAT_CONFIG)")
	pf.StringVarP(&flags.model, "model", "m", "", "model name (overrides OLLAMA_MODEL / ARK_MODEL)")
	pf.StringVar(&flags.ollamaURL, "ollama", "", "Ollama base URL (overrides OLLAMA_BASE_URL)")
	pf.StringVar(&flags.logDir, "log-dir", "", "directory for chat_log.json and execute_log.json")
	pf.StringVar(&flags.historyDB, "history-db", "", "sqlite file mirroring every record")
	pf.BoolVar(&flags.autoRoute, "auto-route", false, "send file-like requests to the interpreter without /oi")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging on stderr")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colors and markdown rendering")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newLogsCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runChat(cmd *cobra.Command, flags *globalFlags, plain bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := flags.load(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderer := render.New(out, !plain && isTerminal(out))

	a, err := newApp(ctx, cfg, func(s interpreter.Step) {
		renderer.CodeStep(s.Index, s.Block.Language, s.Block.Code, s.Output)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	rp := repl.New(a.dispatcher, renderer, cmd.InOrStdin(), cfg.AI.Endpoint())
	if !cfg.Exec.AutoRun {
		a.runner.Confirm = rp.Confirm
	}
	return rp.Run(ctx)
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		return 1
	}
	return 0
}
