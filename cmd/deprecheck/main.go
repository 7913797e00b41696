package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"deprecheck/internal/cache"
	"deprecheck/internal/config"
	"deprecheck/internal/logging"
	"deprecheck/internal/pipeline"
	"deprecheck/internal/rules"
)

// errViolations makes the process exit non-zero without printing an error.
var errViolations = errors.New("deprecated symbols found")

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
	runID  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "deprecheck",
		Short:         "Find uses of deprecated classes, interfaces and methods in PHP code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newRulesCmd(opts))
	return rootCmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	o.runID = uuid.NewString()
	o.cfg = cfg
	o.logger = logger.With("run_id", o.runID)
	slog.SetDefault(o.logger)
	return nil
}

func (o *rootOptions) cacheOptions(noCache bool, dir string) cache.Options {
	opts := cache.Options{Dir: o.cfg.Cache.Dir, Disabled: o.cfg.Cache.Disabled}
	if noCache {
		opts.Disabled = true
	}
	if dir != "" {
		opts.Dir = dir
	}
	return opts
}

type checkFlags struct {
	rules    string
	roots    []string
	noCache  bool
	cacheDir string
	format   string
	fail     bool
	filter   string
	workers  int
	dedup    bool
	since    string
	report   string
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	f := &checkFlags{}
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Report uses of deprecated symbols under path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runCheck(cmd, root, f, path)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&f.rules, "rules", "r", "", "Rule source: directory, composer.lock or rule file (default: <path>/composer.lock or <path>)")
	flags.StringArrayVar(&f.roots, "root", nil, "Extra dependency source root (repeatable)")
	flags.BoolVar(&f.noCache, "no-cache", false, "Disable the rule set cache")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "Rule set cache directory")
	flags.StringVarP(&f.format, "format", "f", "", "Output format: text or json")
	flags.BoolVar(&f.fail, "fail", false, "Exit with status 1 when violations are found")
	flags.StringVar(&f.filter, "filter", "", `Comma separated symbols to ignore, e.g. Foo\Bar::baz,Foo\Qux`)
	flags.IntVarP(&f.workers, "workers", "j", 0, "Parallel file checks (default: number of CPUs)")
	flags.BoolVar(&f.dedup, "dedup", false, "Drop repeated violations at the same location")
	flags.StringVar(&f.since, "since", "", "Only report violations on lines changed since this git ref")
	flags.StringVar(&f.report, "report", "", "Write stage timings and signals as JSON to this file")
	return cmd
}

func runCheck(cmd *cobra.Command, root *rootOptions, f *checkFlags, path string) error {
	cfg := root.cfg
	flags := cmd.Flags()

	opts := pipeline.CheckOptions{
		Path:      path,
		Rules:     cfg.Rules.Source,
		Roots:     append(append([]string(nil), cfg.Check.Roots...), f.roots...),
		Ignored:   cfg.Check.Ignore,
		VendorDir: cfg.Rules.VendorDir,
		Cache:     root.cacheOptions(f.noCache, f.cacheDir),
		Workers:   cfg.Check.Workers,
		Dedup:     cfg.Check.Dedup || f.dedup,
		Filter:    cfg.FilterList(),
		Since:     f.since,
		Logger:    root.logger,
		RunID:     root.runID,
		OnProgress: func(done, total int, file string) {
			root.logger.Debug("checked file", "done", done, "total", total, "path", file)
		},
	}
	if f.rules != "" {
		opts.Rules = f.rules
	}
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	if f.filter != "" {
		opts.Filter = f.filter
	}
	format := cfg.Output.Format
	if f.format != "" {
		format = f.format
	}

	report, err := pipeline.NewCheck(opts).Run(cmd.Context())
	if err != nil {
		return err
	}
	if f.report != "" {
		if err := report.Timeline.Save(f.report); err != nil {
			root.logger.Warn("failed to write run report", "path", f.report, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		err = renderJSON(out, root.runID, report)
	case "text", "":
		err = renderText(out, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}

	if (cfg.Check.Fail || f.fail) && !report.Summary.OK() {
		return errViolations
	}
	return nil
}

func newRulesCmd(root *rootOptions) *cobra.Command {
	var (
		output   string
		noCache  bool
		cacheDir string
	)
	load := func(cmd *cobra.Command, source string) (*pipeline.RuleLoad, error) {
		return pipeline.LoadRules(cmd.Context(), pipeline.RulesOptions{
			Source:    source,
			VendorDir: root.cfg.Rules.VendorDir,
			Ignored:   root.cfg.Check.Ignore,
			Cache:     root.cacheOptions(noCache, cacheDir),
			Logger:    root.logger,
		})
	}

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and export rule sets",
	}
	rulesCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Disable the rule set cache")
	rulesCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Rule set cache directory")

	dumpCmd := &cobra.Command{
		Use:   "dump <source>",
		Short: "Serialize the rules of any source to a rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return rules.Encode(cmd.OutOrStdout(), loaded.RuleSet)
			}
			return writeRuleFile(output, loaded.RuleSet)
		},
	}
	dumpCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	showCmd := &cobra.Command{
		Use:   "show <source>",
		Short: "List the deprecated symbols of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			return renderRules(cmd.OutOrStdout(), loaded)
		},
	}

	rulesCmd.AddCommand(dumpCmd)
	rulesCmd.AddCommand(showCmd)
	return rulesCmd
}

func writeRuleFile(path string, rs *rules.RuleSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rule file: %w", err)
	}
	if err := rules.Encode(f, rs); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return f.Close()
}
