package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/results"
)

// scratchWidget is the id of the one-widget page built for compiling a file.
const scratchWidget = "cli"

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func remoteFailure(op, msg string) error {
	if msg == "" {
		msg = "unknown"
	}
	return fmt.Errorf("%s: service reported failure: %s", op, msg)
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		shots  int
		asJSON bool
		save   string
	)
	cmd := &cobra.Command{
		Use:   "simulate [circuit-type]",
		Short: "Simulate a named circuit and print the measurement histogram",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuitType := backend.DefaultCircuit
			if len(args) == 1 {
				circuitType = args[0]
			}
			return a.withClient(nil, func(c *backend.Client, db *sql.DB) error {
				res, err := c.Simulate(cmd.Context(), circuitType, map[string]any{"shots": shots})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), res)
				}
				if !res.OK() {
					return remoteFailure("simulate", res.Error)
				}
				m := res.Measurement()
				if save != "" && db != nil {
					if err := repository.NewResultRepo(db).Save(cmd.Context(), save, m); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), results.Table(m))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&shots, "shots", 1024, "number of shots")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	cmd.Flags().StringVar(&save, "save", "", "keep the result as the last render for this target")
	return cmd
}

func (a *app) benchmarkCmd() *cobra.Command {
	var shots int
	cmd := &cobra.Command{
		Use:   "benchmark [circuit-type]",
		Short: "Compare buffered and unbuffered execution of a circuit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			circuitType := ""
			if len(args) == 1 {
				circuitType = args[0]
			}
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Benchmark(cmd.Context(), circuitType, shots)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&shots, "shots", backend.DefaultBenchmarkShots, "number of shots")
	return cmd
}

func (a *app) compileCmd() *cobra.Command {
	var (
		pagePath string
		widget   string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "compile [source-file]",
		Short: "Compile a source file, or a widget of a page with --page",
		Long: `Without --page the source file (stdin when omitted) is compiled.
With --page the editor text of --widget on that page is compiled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc *page.Document
			var err error
			if pagePath != "" {
				doc, err = loadPage(pagePath, cmd.InOrStdin())
				if err != nil {
					return err
				}
			} else {
				src, err := readInput(args, cmd.InOrStdin())
				if err != nil {
					return err
				}
				doc, err = scratchPage(src)
				if err != nil {
					return err
				}
				widget = scratchWidget
			}
			circuits := circuit.Scan(doc.Root())
			token := resolveToken(a.cfg)
			return a.withClient(circuits, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Compile(cmd.Context(), widget, a.cfg.CompileOptions(token))
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), res.Raw)
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message())
				if !res.OK() {
					return remoteFailure("compile", res.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pagePath, "page", "", "host page to read the widget from")
	cmd.Flags().StringVar(&widget, "widget", "", "widget id on --page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

// scratchPage wraps source in a single widget so it can be compiled like one
// embedded in a page.
func scratchPage(source string) (*page.Document, error) {
	doc, err := page.ParseString(`<div class="qbp-circuit" data-id="` + scratchWidget + `">` +
		`<textarea class="circuit-editor"></textarea><div class="circuit-status"></div></div>`)
	if err != nil {
		return nil, err
	}
	ed := doc.Root().Find(page.Class(circuit.EditorClass))
	ed.SetText(source)
	return doc, nil
}

func (a *app) executeCmd() *cobra.Command {
	var rawCtx string
	cmd := &cobra.Command{
		Use:   "execute <command>",
		Short: "Run one command on the service kernel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var execCtx map[string]any
			if rawCtx != "" {
				if err := json.Unmarshal([]byte(rawCtx), &execCtx); err != nil {
					return fmt.Errorf("--context: %w", err)
				}
			}
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Execute(cmd.Context(), strings.Join(args, " "), execCtx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&rawCtx, "context", "", `execution context as JSON, e.g. '{"shots":512}'`)
	return cmd
}

func (a *app) tokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize [source-file]",
		Short: "Show the token stream of a source file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readInput(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Tokenize(cmd.Context(), src)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func (a *app) encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt text with a quantum-derived key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Encrypt(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ciphertext %s\nkey        %s\n", res.CiphertextHex, res.KeyHex)
				return nil
			})
		},
	}
}

func (a *app) decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <ciphertext-hex> <key-hex>",
		Short: "Decrypt ciphertext produced by encrypt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.Decrypt(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Plaintext)
				return nil
			})
		},
	}
}

func (a *app) qrngCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "qrng",
		Short: "Draw quantum random bits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.QRNG(cmd.Context(), bits)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "hex %s\nint %s\n", res.RandomHex, res.RandomInt)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&bits, "bits", backend.DefaultQRNGBits, "number of random bits")
	return cmd
}

func (a *app) chatCmd() *cobra.Command {
	var historyFile string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the research assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var turns []backend.ChatTurn
			if historyFile != "" {
				raw, err := readInput([]string{historyFile}, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if err := json.Unmarshal([]byte(raw), &turns); err != nil {
					return fmt.Errorf("--history: %w", err)
				}
			}
			return a.withClient(nil, func(c *backend.Client, _ *sql.DB) error {
				res, err := c.AskAria(cmd.Context(), strings.Join(args, " "), turns)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Response)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&historyFile, "history", "", "JSON file of prior turns [{role, content}]")
	return cmd
}
