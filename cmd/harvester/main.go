package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amosWeiskopf/harvester/internal/config"
	applog "github.com/amosWeiskopf/harvester/internal/log"
	"github.com/amosWeiskopf/harvester/pkg/analyzer"
	"github.com/amosWeiskopf/harvester/pkg/crawler"
	"github.com/amosWeiskopf/harvester/pkg/fetcher"
	"github.com/amosWeiskopf/harvester/pkg/reporter"
	"github.com/amosWeiskopf/harvester/pkg/siteconfig"
	"github.com/amosWeiskopf/harvester/pkg/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errNoConfig = errors.New("either --config or --template is required")

type options struct {
	configPath   string
	output       string
	format       string
	template     bool
	settingsPath string
	dedupe       []string
	report       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvester - configuration driven listing scraper",
		Long: `Harvester scrapes paginated listing pages. A configuration document
names the item container and the fields to extract from each item; the
records are saved as CSV or JSON.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.template {
				return writeTemplate(cmd, siteconfig.DefaultTemplatePath)
			}
			if opts.configPath == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
				return errNoConfig
			}
			return run(cmd, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration document (JSON or YAML)")
	flags.StringVarP(&opts.output, "output", "o", "scraped_data.csv", "Output file")
	flags.StringVarP(&opts.format, "format", "f", string(reporter.FormatCSV), "Output format (csv, json)")
	flags.BoolVarP(&opts.template, "template", "t", false, "Write a template configuration to "+siteconfig.DefaultTemplatePath+" and exit")
	flags.StringSliceVar(&opts.dedupe, "dedupe", nil, "Drop records repeating these fields (comma separated)")
	flags.BoolVar(&opts.report, "report", false, "Print a run report to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "Runtime settings file (fetch and log options)")

	templateCmd := &cobra.Command{
		Use:   "template [PATH]",
		Short: "Write a template configuration document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := siteconfig.DefaultTemplatePath
			if len(args) == 1 {
				path = args[0]
			}
			return writeTemplate(cmd, path)
		},
	}
	rootCmd.AddCommand(templateCmd)

	return rootCmd
}

func writeTemplate(cmd *cobra.Command, path string) error {
	if err := siteconfig.WriteTemplate(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Template configuration written to %s\n", path)
	return nil
}

func run(cmd *cobra.Command, opts *options) error {
	format, err := reporter.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	settings, err := config.Load(opts.settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger, closer, err := applog.New(applog.Options{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		File:   settings.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer closer.Close()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	cfg, err := siteconfig.Load(opts.configPath)
	if err != nil {
		logger.Error("error loading config, using defaults", zap.String("path", opts.configPath), zap.Error(err))
	}
	fieldNames := cfg.Fields.Names()

	for _, name := range opts.dedupe {
		if _, ok := cfg.Fields.Get(name); !ok {
			return fmt.Errorf("unknown dedupe field %q", name)
		}
	}

	f := fetcher.FromConfig(settings.Fetch, cfg.RateLimit.Min(), cfg.RateLimit.Max(), logger.Named("fetcher"))
	c, err := crawler.New(cfg, f, logger.Named("crawler"))
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	logger.Info("starting scrape",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_items", cfg.MaxItems),
		zap.Int("max_pages", cfg.Pagination.MaxPages),
	)
	result := c.Crawl(cmd.Context())

	if len(opts.dedupe) > 0 {
		before := len(result.Records)
		result.Records = store.Dedupe(result.Records, opts.dedupe)
		logger.Info("removed duplicates",
			zap.Strings("keys", opts.dedupe),
			zap.Int("removed", before-len(result.Records)),
		)
	}

	a := analyzer.New(logger.Named("analyzer"))
	summary := a.Analyze(result.Records, fieldNames)
	a.Log(summary)

	rep := reporter.New(logger.Named("reporter"))
	if _, err := rep.WriteFile(opts.output, result.Records, fieldNames, format); err != nil {
		return err
	}
	if opts.report {
		fmt.Fprint(cmd.ErrOrStderr(), rep.RunReport(result, summary))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
