package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/CTAG07/Stitch/pkg/assembly"
	"github.com/CTAG07/Stitch/pkg/config"
	"github.com/CTAG07/Stitch/pkg/ledger"
	"github.com/CTAG07/Stitch/pkg/luacheck"
	"github.com/CTAG07/Stitch/pkg/watch"
	"github.com/spf13/cobra"
)

// buildAll assembles every plan in memory before writing any output, so a
// template or fragment error in one variant leaves every output untouched.
// Each build is recorded when h is non-nil. A ledger failure is logged only:
// the output has already been written.
func (a *app) buildAll(ctx context.Context, w io.Writer, plans []assembly.Plan, h *history) error {
	results := make([]*assembly.Result, len(plans))
	for i, p := range plans {
		a.logger.Info("Assembling", "variant", p.Name, "template", p.Template, "entries", p.Manifest.Len())
		res, err := p.Assemble(ctx, a.logger)
		if err != nil {
			return fmt.Errorf("variant %q: %w", p.Name, err)
		}
		results[i] = res
	}

	for i, p := range plans {
		res := results[i]
		if err := assembly.WriteOutput(p.Output, res.Document); err != nil {
			return fmt.Errorf("variant %q: %w", p.Name, err)
		}
		if h != nil {
			run := ledger.NewRun(p, res, time.Now())
			if err := h.Record(ctx, &run); err != nil {
				a.logger.Error("Failed to record build", "variant", p.Name, "error", err)
			} else {
				a.logger.Debug("Recorded build", "variant", p.Name, "run_id", run.ID, "digest", run.Digest)
			}
		}
		a.logger.Info("Wrote output", "variant", p.Name, "path", p.Output, "bytes", res.Document.Len(), "warnings", len(res.Warnings))
		_, _ = fmt.Fprintf(w, "done: %s\n", p.Output)
	}
	return nil
}

func (a *app) openHistory() (*history, error) {
	return openHistory(a.cfg.Resolve(a.cfg.LedgerPath))
}

func newBuildCmd(a *app) *cobra.Command {
	var strict, record bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Assemble the output file of each variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if strict {
				a.cfg.Strict = true
			}
			if record {
				a.cfg.Record = true
			}
			plans, err := a.cfg.Plans(a.variants)
			if err != nil {
				return err
			}

			var h *history
			if a.cfg.Record {
				if h, err = a.openHistory(); err != nil {
					return err
				}
				defer h.Close()
			}

			return a.buildAll(cmd.Context(), cmd.OutOrStdout(), plans, h)
		},
	}
	addVariantFlag(cmd, a)
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when a manifest token does not occur in the template")
	cmd.Flags().BoolVar(&record, "record", false, "record the build in the history database")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report outputs that differ from a fresh assembly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			plans, err := a.cfg.Plans(a.variants)
			if err != nil {
				return err
			}
			stale := 0
			for _, p := range plans {
				_, err := assembly.Check(cmd.Context(), p, a.logger)
				switch {
				case errors.Is(err, assembly.ErrStale):
					stale++
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stale: %s\n", p.Output)
				case err != nil:
					return fmt.Errorf("variant %q: %w", p.Name, err)
				default:
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", p.Output)
				}
			}
			if stale > 0 {
				return fmt.Errorf("%d of %d outputs are stale", stale, len(plans))
			}
			return nil
		},
	}
	addVariantFlag(cmd, a)
	return cmd
}

func newLintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Syntax-check the Lua fragments of each variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			plans, err := a.cfg.Plans(a.variants)
			if err != nil {
				return err
			}
			checked, failed := 0, 0
			for _, p := range plans {
				store := assembly.DirStore{Base: p.FragmentDir}
				for _, e := range p.Manifest.Entries() {
					if !luacheck.IsLua(e.Source) {
						continue
					}
					checked++
					if err := luacheck.CheckFile(store.Path(e.Source)); err != nil {
						failed++
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", p.Name, err)
					}
				}
			}
			a.logger.Info("Lint finished", "checked", checked, "failed", failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d Lua fragments failed to compile", failed, checked)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d Lua fragments\n", checked)
			return nil
		},
	}
	addVariantFlag(cmd, a)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever a template or fragment changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			plans, err := a.cfg.Plans(a.variants)
			if err != nil {
				return err
			}

			var files []string
			for _, p := range plans {
				files = append(files, p.Template)
				store := assembly.DirStore{Base: p.FragmentDir}
				for _, e := range p.Manifest.Entries() {
					files = append(files, store.Path(e.Source))
				}
			}

			out := cmd.OutOrStdout()
			rebuild := func(ctx context.Context) error {
				return a.buildAll(ctx, out, plans, nil)
			}

			if err = rebuild(cmd.Context()); err != nil {
				a.logger.Error("Initial build failed", "error", err)
			}

			w, err := watch.New(files, rebuild, watch.WithDebounce(debounce), watch.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			a.logger.Info("Watching for changes", "files", len(files))
			if err = w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("Watch stopped", "builds", w.Builds())
			return nil
		},
	}
	addVariantFlag(cmd, a)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "time to wait for changes to settle")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [variant]",
		Short: "List recorded builds, or the fragments of a variant's last build",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			h, err := a.openHistory()
			if err != nil {
				return err
			}
			defer h.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer func() { _ = tw.Flush() }()

			if len(args) == 1 {
				run, err := h.Last(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(tw, "run %d\t%s\t%s\n", run.ID, run.BuiltAt.Format(time.RFC3339), run.Digest)
				_, _ = fmt.Fprintln(tw, "TOKEN\tSOURCE\tCOUNT\tBYTES\tDIGEST")
				for _, f := range run.Fragments {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", f.Token, f.Source, f.Count, f.Bytes, short(f.Digest))
				}
				return nil
			}

			runs, err := h.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(tw, "ID\tVARIANT\tBUILT\tBYTES\tDIGEST\tOUTPUT")
			for _, r := range runs {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.Variant, r.BuiltAt.Format(time.RFC3339), r.Bytes, short(r.Digest), r.Output)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of builds to list")
	return cmd
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
			}
			if err := config.Save(a.configPath, config.Example()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
