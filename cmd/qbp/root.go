package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/config"
	"github.com/qubitpage/qbp/internal/database"
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/logging"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/secrets"
)

// ibmTokenName is the secrets entry holding the IBM Quantum token.
const ibmTokenName = "ibm"

// app is what every command gets after the persistent pre-run.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	logCloser io.Closer
	baseURL   string
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "qbp",
		Short: "Circuit widget runtime for the qbp quantum service",
		Long: `qbp drives the circuit widgets of a host page against a remote
compile/simulate/crypto service, in a terminal UI or one request at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if a.baseURL != "" {
				cfg.Backend.BaseURL = a.baseURL
			}
			log, closer, err := logging.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("logging: %w", err)
			}
			a.cfg, a.log, a.logCloser = cfg, log, closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "service base URL (overrides backend.base_url)")

	root.AddCommand(
		a.uiCmd(),
		a.simulateCmd(),
		a.benchmarkCmd(),
		a.compileCmd(),
		a.executeCmd(),
		a.tokenizeCmd(),
		a.encryptCmd(),
		a.decryptCmd(),
		a.qrngCmd(),
		a.chatCmd(),
		a.renderCmd(),
		a.historyCmd(),
		a.tokenCmd(),
	)
	return root
}

// resolveToken prefers the environment, then the secrets store, then config.
func resolveToken(cfg config.Config) string {
	env := strings.TrimSpace(cfg.Backend.TokenEnv)
	if env == "" {
		env = "QBP_IBM_TOKEN"
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	if t, err := secrets.FetchToken(ibmTokenName); err == nil {
		return t
	}
	return strings.TrimSpace(cfg.Backend.Token)
}

// openHistory opens and migrates the history database. It returns nil when
// history is disabled.
func (a *app) openHistory() (*sql.DB, error) {
	if !a.cfg.History.Enabled || a.cfg.History.Path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.History.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir history dir: %w", err)
	}
	db, err := database.Open(a.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return db, nil
}

func (a *app) newClient(circuits *circuit.Registry, db *sql.DB, token string) *backend.Client {
	opts := []backend.Option{backend.WithLogger(a.log)}
	if a.cfg.Backend.Bearer && token != "" {
		opts = append(opts, backend.WithToken(token))
	}
	if db != nil {
		opts = append(opts, backend.WithRecorder(repository.NewExchangeRepo(db)))
	}
	return backend.New(a.cfg.Backend.BaseURL, circuits, opts...)
}

// withClient runs fn with a client recording into history when enabled.
func (a *app) withClient(circuits *circuit.Registry, fn func(c *backend.Client, db *sql.DB) error) error {
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	return fn(a.newClient(circuits, db, resolveToken(a.cfg)), db)
}

// loadPage parses a page file; "-" reads stdin.
func loadPage(path string, stdin io.Reader) (*page.Document, error) {
	if path == "-" {
		return page.Parse(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return page.Parse(f)
}

// readInput reads a file argument, or stdin when there is none.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(args[0])
	return string(b), err
}
