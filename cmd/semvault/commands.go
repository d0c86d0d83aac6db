package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semvault/artifact"
	"github.com/c360studio/semvault/config"
	"github.com/c360studio/semvault/connectivity"
	"github.com/c360studio/semvault/schema"
	"github.com/c360studio/semvault/statement"
)

// policyFlags are the per-request policy overrides.
type policyFlags struct {
	dangling string
	verify   bool
}

func (p *policyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.dangling, "dangling", "", "Dangling object policy (ignore, report, force-clean); default from config")
	cmd.Flags().BoolVar(&p.verify, "verify", true, "Verify data references; default from config")
}

func (p *policyFlags) resolve(cmd *cobra.Command, cfg *config.Config) (connectivity.Policy, artifact.VerifyPolicy, error) {
	name := p.dangling
	if name == "" {
		name = cfg.Policies.Dangling
	}
	dangling, err := connectivity.ParsePolicy(name)
	if err != nil {
		return "", "", err
	}

	verify := cfg.Policies.Verify
	if cmd.Flags().Changed("verify") {
		verify = p.verify
	}
	if verify {
		return dangling, artifact.VerifyPolicyVerify, nil
	}
	return dangling, artifact.VerifyPolicyDoNotVerify, nil
}

func verifyPolicy(verify bool) artifact.VerifyPolicy {
	if verify {
		return artifact.VerifyPolicyVerify
	}
	return artifact.VerifyPolicyDoNotVerify
}

func readStatements(path string) ([]statement.Statement, error) {
	f, err := statement.FormatForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !statement.FormatRegistry[f].Readable {
		return nil, fmt.Errorf("%s: %s input is not supported", path, f)
	}
	return parseFile(path)
}

func parseFile(path string) ([]statement.Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open statements: %w", err)
	}
	defer f.Close()
	stmts, err := statement.Parse(f, "")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return stmts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadCmd(opts *globalOptions) *cobra.Command {
	var flags policyFlags
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a new artifact from an N-Triples or N-Quads file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts, err := readStatements(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				dangling, verify, err := flags.resolve(cmd, app.cfg)
				if err != nil {
					return err
				}
				a, err := app.manager.Load(ctx, stmts, artifact.LoadOptions{Dangling: dangling, Verify: verify})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func updateCmd(opts *globalOptions) *cobra.Command {
	var (
		flags   policyFlags
		policy  string
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "update ONTOLOGY VERSION FILE",
		Short: "Apply statements to the current version of an artifact",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := artifact.ParseUpdatePolicy(policy)
			if err != nil {
				return err
			}
			stmts, err := readStatements(args[2])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				dangling, verify, err := flags.resolve(cmd, app.cfg)
				if err != nil {
					return err
				}
				a, err := app.manager.Update(ctx, artifact.UpdateRequest{
					OntologyID: args[0],
					VersionID:  args[1],
					Statements: stmts,
					Policy:     p,
					Targets:    targets,
					Dangling:   dangling,
					Verify:     verify,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&policy, "policy", string(artifact.PolicyMerge), "Update policy (merge, replace-existing)")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "Objects replaced under replace-existing (repeatable)")
	return cmd
}

func publishCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish ONTOLOGY VERSION",
		Short: "Publish the current version of an artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				a, err := app.manager.Publish(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}
}

func deleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ONTOLOGY [VERSION]",
		Short: "Delete one version, or every version, of an unpublished artifact",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				deleted, err := app.manager.Delete(ctx, args[0], version)
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "nothing deleted: %s is not a version of %s\n", version, args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", strings.TrimSpace(args[0]+" "+version))
				return nil
			})
		},
	}
}

func exportCmd(opts *globalOptions) *cobra.Command {
	var (
		format   string
		inferred bool
	)
	cmd := &cobra.Command{
		Use:   "export ONTOLOGY",
		Short: "Write the statements of the current version of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := statement.ParseFormat(format)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				stmts, err := app.manager.Export(ctx, args[0], inferred)
				if err != nil {
					return err
				}
				return statement.Write(cmd.OutOrStdout(), stmts, f)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(statement.FormatNTriples), "Output format (ntriples, nquads, turtle)")
	cmd.Flags().BoolVar(&inferred, "inferred", false, "Include inferred statements")
	return cmd
}

func importsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "imports ONTOLOGY",
		Short: "List the schema versions an artifact imports, in resolution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				imports, err := app.manager.SchemaImports(ctx, args[0])
				if err != nil {
					return err
				}
				for _, imp := range imports {
					fmt.Fprintln(cmd.OutOrStdout(), imp)
				}
				return nil
			})
		},
	}
}

func updateImportsCmd(opts *globalOptions) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "update-imports ONTOLOGY VERSION",
		Short: "Re-pin an artifact's schema imports to the current schema versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				v := app.cfg.Policies.Verify
				if cmd.Flags().Changed("verify") {
					v = verify
				}
				a, err := app.manager.UpdateSchemaImports(ctx, args[0], args[1], verifyPolicy(v))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "Verify data references; default from config")
	return cmd
}

func deleteObjectCmd(opts *globalOptions) *cobra.Command {
	var cascade bool
	cmd := &cobra.Command{
		Use:   "delete-object ONTOLOGY VERSION OBJECT",
		Short: "Remove an object and the links pointing at it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				a, err := app.manager.DeleteObject(ctx, args[0], args[1], args[2], cascade)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also remove objects left unreachable")
	return cmd
}

func listCmd(opts *globalOptions) *cobra.Command {
	var published, unpublished bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List managed artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if published && unpublished {
				return fmt.Errorf("--published and --unpublished are mutually exclusive")
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				var (
					list []*artifact.Artifact
					err  error
				)
				switch {
				case published:
					list, err = app.manager.ListPublished(ctx)
				case unpublished:
					list, err = app.manager.ListUnpublished(ctx)
				default:
					list, err = app.manager.List(ctx)
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, a := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\n", a.OntologyID, a.VersionID, a.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "Only published artifacts")
	cmd.Flags().BoolVar(&unpublished, "unpublished", false, "Only unpublished artifacts")
	return cmd
}

func schemaCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and watch the managed schemas",
	}
	cmd.AddCommand(schemaOrderCmd(opts), schemaWatchCmd(opts))
	return cmd
}

func schemaOrderCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print schema versions in import resolution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				res := app.schemas.Resolution()
				w := cmd.OutOrStdout()
				for _, version := range res.Order() {
					ont, _ := res.OntologyOf(version)
					marker := ""
					if current, ok := res.CurrentVersion(ont); ok && current == version {
						marker = "\tcurrent"
					}
					fmt.Fprintf(w, "%s\t%s%s\n", version, ont, marker)
				}
				return nil
			})
		},
	}
}

func schemaWatchCmd(opts *globalOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reinstall schemas whenever the manifest or its files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				w, err := schema.NewWatcher(app.schemas, schema.WatcherConfig{
					ManifestPath:  app.cfg.Schemas.Manifest,
					DebounceDelay: app.cfg.Schemas.Debounce,
					Logger:        app.logger,
					OnReload: func(ctx context.Context, m *schema.Manifest) error {
						_, err := schema.Install(ctx, app.repo, m)
						return err
					},
				})
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()

				addr := metricsAddr
				if addr == "" {
					addr = app.cfg.Metrics.Addr
				}
				errCh := make(chan error, 1)
				if addr != "" {
					go func() { errCh <- app.ServeMetrics(ctx, addr) }()
				}

				out := cmd.OutOrStdout()
				for {
					select {
					case <-ctx.Done():
						return nil
					case err := <-errCh:
						return err
					case ev, ok := <-w.Events():
						if !ok {
							return nil
						}
						if ev.Error != nil {
							fmt.Fprintf(out, "reload failed: %v\n", ev.Error)
							continue
						}
						fmt.Fprintf(out, "reloaded %d schema versions\n", len(ev.Resolution.Order()))
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on this address; default from config")
	return cmd
}
