package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ktdde/internal/app"
	"ktdde/internal/catalog"
	"ktdde/internal/config"
	"ktdde/internal/db"
	"ktdde/internal/domain"
	"ktdde/internal/events"
	"ktdde/internal/jsonview"
	"ktdde/internal/metrics"
	"ktdde/internal/migrate"
	"ktdde/internal/repo"
	"ktdde/internal/server"
	"ktdde/internal/transform"
	"ktdde/internal/tui"
	"ktdde/internal/view"
)

var (
	stdout io.Writer = os.Stdout
	logger           = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:   "ktdde",
	Short: "KTDDE trade document explorer",
	Long: `ktdde walks through a Finland to Japan timber shipment as seen by each party.
- Actors: buyer, seller, bank, carrier, customs, chamber and certifier each see their own ordered set of documents.
- Documents: JSON-LD trade documents (purchase order, letter of credit, bill of lading, invoice...) shown with highlighting.
- Timeline: the dated events of the shipment; each one opens the document it produced.
- SAP transform: four documents replay how SAP table fields map into the document, ending in a Verifiable Credential.
- Snapshot: 'ktdde snapshot' writes the scenario into .ktdde/ktdde.db for SQL inspection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("KTDDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(actorsCmd())
	rootCmd.AddCommand(docsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(mappingCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(credentialCmd())
	rootCmd.AddCommand(browseCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(scenarioCmd())
}

func actorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actors",
		Short: "List actors and how many documents each sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				actors := ac.Catalog.Actors()
				if viper.GetBool("json") {
					return printJSON(actors)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Key", "Name", "Icon", "Documents"})
				for _, a := range actors {
					tw.AppendRow(table.Row{a.Key, a.Name, a.Icon, len(ac.Catalog.DocumentsFor(a.Key))})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func docsCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List documents, or one actor's documents in view order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				if actor == "" {
					return listAllDocuments(ac.Catalog)
				}
				m := view.New(ac.Catalog)
				if !m.SelectActor(actor) {
					return fmt.Errorf("actor %s not found", actor)
				}
				cards := m.Cards()
				if viper.GetBool("json") {
					return printJSON(cards)
				}
				if len(cards) == 0 {
					fmt.Fprintln(stdout, view.NoDocuments)
					return nil
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "Key", "Title", "Type", "SAP"})
				for _, c := range cards {
					tw.AppendRow(table.Row{c.Rank, c.Key, c.Icon + " " + c.Title, c.Type, yesNo(c.HasMapping)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "show the documents this actor sees")
	return cmd
}

func listAllDocuments(c *catalog.Catalog) error {
	docs := c.Documents()
	if viper.GetBool("json") {
		cards := make([]view.Card, 0, len(docs))
		for _, d := range docs {
			cards = append(cards, view.CardOf(d, ""))
		}
		return printJSON(cards)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Key", "Title", "Type", "Business ID", "Actors", "SAP"})
	for _, d := range docs {
		var actors []string
		for _, a := range c.Actors() {
			if d.VisibleTo(a.Key) {
				actors = append(actors, a.Key)
			}
		}
		tw.AppendRow(table.Row{d.Key, d.Icon + " " + d.Title, d.Type, d.BusinessID, strings.Join(actors, ","), yesNo(d.Source != nil)})
	}
	tw.Render()
	return nil
}

func showCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print a document's content as highlighted JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				d, err := document(ac.Catalog, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					raw, err := jsonview.Compact(d.Content)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(stdout, string(raw))
					return err
				}
				f, ok := jsonview.ParseFormat(format)
				if !ok {
					return fmt.Errorf("unknown format %q (want text, html or ansi)", format)
				}
				out, err := jsonview.Render(d.Content, f, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "ansi", "output format: text, html or ansi")
	return cmd
}

func timelineCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List the shipment's dated events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				m := view.New(ac.Catalog)
				if actor != "" && !m.SelectActor(actor) {
					return fmt.Errorf("actor %s not found", actor)
				}
				rows := m.Timeline()
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Date", "Event", "Actor", "Document", "Visible to " + m.Actor})
				for _, r := range rows {
					visible := ""
					if r.Interactive {
						visible = yesNo(r.Visible)
					}
					tw.AppendRow(table.Row{r.Date, r.Title, r.Actor, r.Doc, visible})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "mark events whose document this actor sees")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check totals, cross-references and view integrity of the scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				rep := catalog.Check(ac.Catalog)
				if viper.GetBool("json") {
					if err := printJSON(map[string]any{"ok": rep.OK(), "checked": rep.Checked, "issues": rep.Issues}); err != nil {
						return err
					}
				} else if rep.OK() {
					fmt.Fprintf(stdout, "scenario OK (%d checks)\n", rep.Checked)
				} else {
					tw := newTable()
					tw.AppendHeader(table.Row{"Check", "Document", "Problem"})
					for _, is := range rep.Issues {
						tw.AppendRow(table.Row{is.Check, is.Doc, is.Message})
					}
					tw.Render()
				}
				if !rep.OK() {
					return fmt.Errorf("%d of %d checks failed", len(rep.Issues), rep.Checked)
				}
				return nil
			})
		},
	}
}

func mappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mapping <key>",
		Short: "Show the SAP tables and field mappings behind a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				d, err := document(ac.Catalog, args[0])
				if err != nil {
					return err
				}
				if d.Source == nil || len(d.Source.Mappings) == 0 {
					return fmt.Errorf("%s: %w", d.Key, transform.ErrNoMapping)
				}
				if viper.GetBool("json") {
					return printJSON(d.Source)
				}
				for _, t := range d.Source.Tables {
					fmt.Fprintf(stdout, "%s (%s)\n", t.Name, t.Role)
					tw := newTable()
					tw.AppendHeader(table.Row{"Field", "Value"})
					for i, rec := range t.Records {
						if i > 0 {
							tw.AppendSeparator()
						}
						for _, f := range rec {
							tw.AppendRow(table.Row{f.Name, f.Value})
						}
					}
					tw.Render()
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"SAP", "KTDDE", "Description"})
				for _, m := range d.Source.Mappings {
					tw.AppendRow(table.Row{m.Source, m.Target, m.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func transformCmd() *cobra.Command {
	var interval string
	var issuedAt string
	cmd := &cobra.Command{
		Use:   "transform <key>",
		Short: "Replay the SAP to KTDDE transformation of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				d, err := document(ac.Catalog, args[0])
				if err != nil {
					return err
				}
				every, err := ac.Config.TransformInterval()
				if err != nil {
					return err
				}
				if interval != "" {
					if every, err = time.ParseDuration(interval); err != nil {
						return fmt.Errorf("invalid --interval: %w", err)
					}
				}
				opts := ac.TransformOptions()
				if opts.IssuedAt, err = parseIssuedAt(issuedAt); err != nil {
					return err
				}
				reveal, err := transform.Plan(d, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					exp, err := reveal.Export()
					if err != nil {
						return err
					}
					return printJSON(exp)
				}
				return transform.Play(cmd.Context(), reveal, every, func(f transform.Frame) error {
					if f.Final {
						fmt.Fprintln(stdout, "== Verifiable Credential")
					} else {
						fmt.Fprintf(stdout, "== %s  %s -> %s\n", f.Step.Status, f.Step.Mapping.Source, f.Step.Mapping.Target)
						for _, sv := range f.Step.Sources {
							fmt.Fprintf(stdout, "   %s = %s\n", sv.FieldRef, strings.Join(sv.Values, ", "))
						}
					}
					out, err := jsonview.Render(f.Node, jsonview.FormatANSI, nil)
					if err != nil {
						return err
					}
					fmt.Fprintln(stdout, out)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "", "delay between fields (default from transform.interval)")
	cmd.Flags().StringVar(&issuedAt, "issued-at", "", "RFC3339 issuance time (default now)")
	return cmd
}

func credentialCmd() *cobra.Command {
	var asCBOR bool
	var out, issuedAt string
	cmd := &cobra.Command{
		Use:   "credential <key>",
		Short: "Wrap a document in a Verifiable Credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				d, err := document(ac.Catalog, args[0])
				if err != nil {
					return err
				}
				opts := ac.TransformOptions()
				if opts.IssuedAt, err = parseIssuedAt(issuedAt); err != nil {
					return err
				}
				cred := transform.Credential(d, opts)
				var data []byte
				if asCBOR {
					data, err = transform.EncodeCBOR(cred)
				} else {
					var s string
					s, err = jsonview.Render(cred, jsonview.FormatText, nil)
					data = []byte(s + "\n")
				}
				if err != nil {
					return err
				}
				if out == "" {
					if asCBOR {
						return errors.New("--cbor needs --out")
					}
					_, err = stdout.Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				logger.Info("credential written", "doc", d.Key, "path", out, "bytes", len(data))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asCBOR, "cbor", false, "encode as deterministic CBOR")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	cmd.Flags().StringVar(&issuedAt, "issued-at", "", "RFC3339 issuance time (default now)")
	return cmd
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive document browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				every, err := ac.Config.TransformInterval()
				if err != nil {
					return err
				}
				model := tui.New(ac.Catalog, tui.Options{Interval: every, Transform: ac.TransformOptions()})
				p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
				if ac.Config.Scenario.Watch && ac.ScenarioPath != "" {
					live := catalog.NewLive(ac.Catalog)
					ctx, cancel := context.WithCancel(cmd.Context())
					defer cancel()
					go func() {
						err := catalog.Watch(ctx, ac.ScenarioPath, live, catalog.WatchOptions{
							// Logging to stderr would tear the alternate screen.
							Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
							OnReload: func(err error) {
								if err == nil {
									p.Send(tui.ReloadMsg{Catalog: live.Load()})
								}
							},
						})
						if err != nil && ctx.Err() == nil {
							logger.Error("scenario watch stopped", "error", err)
						}
					}()
				}
				_, err = p.Run()
				if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

func snapshotCmd() *cobra.Command {
	var history, verify bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write the scenario into the workspace SQLite snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
					if history {
						evts, err := events.List(ctx, r.DB, events.SnapshotCreated)
						if err != nil {
							return err
						}
						if viper.GetBool("json") {
							return printJSON(evts)
						}
						tw := newTable()
						tw.AppendHeader(table.Row{"ID", "Time", "Scenario", "Source", "Documents"})
						for _, e := range evts {
							tw.AppendRow(table.Row{e.ID, e.TS, e.EntityID, e.Payload["source"], e.Payload["documents"]})
						}
						tw.Render()
						return nil
					}
					if verify {
						drift, err := r.Verify(ctx, ac.Catalog)
						if err != nil {
							return err
						}
						if viper.GetBool("json") {
							if err := printJSON(drift); err != nil {
								return err
							}
						} else if len(drift) > 0 {
							tw := newTable()
							tw.AppendHeader(table.Row{"Kind", "Key", "Difference"})
							for _, d := range drift {
								tw.AppendRow(table.Row{d.Kind, d.Key, d.Message})
							}
							tw.Render()
						}
						if len(drift) > 0 {
							return fmt.Errorf("snapshot differs from scenario (%d differences)", len(drift))
						}
						if !viper.GetBool("json") {
							fmt.Fprintln(stdout, "snapshot matches scenario")
						}
						return nil
					}
					st, err := r.ReplaceCatalog(ctx, ac.Catalog, events.Writer{})
					if err != nil {
						return err
					}
					logger.Info("snapshot written", "path", db.Path(db.Config{Workspace: ac.Workspace}), "documents", st.Documents)
					return printJSONOrTable(st)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "list previous snapshots instead of writing one")
	cmd.Flags().BoolVar(&verify, "verify", false, "compare the existing snapshot with the scenario")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ac *app.Context) error {
				if addr == "" {
					addr = ac.Config.Server.Addr
				}
				if basePath == "" {
					basePath = ac.Config.Server.BasePath
				}
				live := catalog.NewLive(ac.Catalog)
				m := metrics.New(nil)
				handler, err := server.New(server.Config{
					Catalog:  live,
					BasePath: basePath,
					Issuer:   transform.Issuer{ID: ac.Config.Issuer.ID, Name: ac.Config.Issuer.Name},
					Contexts: ac.Config.Credential.Contexts,
					Metrics:  m,
					Logger:   logger,
				})
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if ac.Config.Scenario.Watch && ac.ScenarioPath != "" {
					go func() {
						err := catalog.Watch(ctx, ac.ScenarioPath, live, catalog.WatchOptions{
							Logger:   logger,
							OnReload: m.ObserveReload,
						})
						if err != nil && ctx.Err() == nil {
							logger.Error("scenario watch stopped", "error", err)
						}
					}()
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving KTDDE API", "addr", addr, "base_path", basePath, "docs", "/docs", "metrics", "/metrics")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from server.base_path)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in ktdde.yml in the workspace: server address, credential issuer and contexts, an optional external scenario file, and the transform playback interval.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSONOrTable(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate ktdde.yml and the scenario it names",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := validateConfig(viper.GetString("workspace"), file)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "validate this config file instead of the workspace ktdde.yml")
	return cmd
}

// validateConfig requires a config file, unlike the other commands which
// fall back to defaults. Scenario paths in an explicit file resolve against
// its directory.
func validateConfig(workspace, file string) error {
	var cfg *config.Config
	var err error
	base := workspace
	if file != "" {
		cfg, err = config.FromFile(file)
		base = filepath.Dir(file)
	} else {
		cfg, err = config.Load(workspace)
	}
	if err != nil {
		return err
	}
	if p := cfg.ScenarioPath(base); p != "" {
		if _, err := catalog.FromFile(p); err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
	}
	return nil
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default ktdde.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if err := writeNew(path, []byte(config.GenerateDefault()), force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func scenarioCmd() *cobra.Command {
	sc := &cobra.Command{
		Use:   "scenario",
		Short: "Work with the scenario file",
	}
	var out string
	var force bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the embedded scenario, as a starting point for scenario.file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				_, err := stdout.Write(catalog.Embedded())
				return err
			}
			if !filepath.IsAbs(out) {
				out = filepath.Join(viper.GetString("workspace"), out)
			}
			if err := writeNew(out, catalog.Embedded(), force); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", out)
			return nil
		},
	}
	dump.Flags().StringVarP(&out, "out", "o", "", "write to a file relative to the workspace")
	dump.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	sc.AddCommand(dump)
	return sc
}

func withApp(fn func(*app.Context) error) error {
	ac, err := app.Resolve(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	return fn(ac)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func document(c *catalog.Catalog, key string) (domain.Document, error) {
	d, ok := c.Get(key)
	if !ok {
		return d, fmt.Errorf("document %s not found", key)
	}
	return d, nil
}

func parseIssuedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return t, fmt.Errorf("invalid --issued-at: %w", err)
	}
	return t, nil
}

func writeNew(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	return tw
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(stdout, string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
