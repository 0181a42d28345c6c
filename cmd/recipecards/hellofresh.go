package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"recipecards/pkg/config"
	"recipecards/pkg/logger"
	"recipecards/pkg/scraper"
	"recipecards/pkg/ui"
)

var (
	// hellofresh command flags
	locale      string
	saveDir     string
	parallel    int
	maxRetries  int
	resume      bool
	withMeta    bool
	metricsAddr string
)

// hellofreshCmd crawls the HelloFresh catalog
var hellofreshCmd = &cobra.Command{
	Use:   "hellofresh",
	Short: "Download all HelloFresh recipe cards for a locale",
	Long: `Download every HelloFresh recipe card for the chosen locale.

The command reads the public API token from the HelloFresh website, walks the
recipe search results page by page and saves each card as <recipe name>.pdf.
Progress is checkpointed after each page; use --resume to continue an
interrupted crawl.`,
	Example: `  # Download US recipe cards into ./recipe-card-pdfs
  recipecards hellofresh

  # Download German cards into a custom directory
  recipecards hellofresh --locale DE --save-dir ./karten

  # Continue where the last run stopped and expose metrics
  recipecards hellofresh --resume --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runHellofresh,
}

func init() {
	rootCmd.AddCommand(hellofreshCmd)

	hellofreshCmd.Flags().StringVarP(&locale, "locale", "l", "", "site locale ("+strings.Join(config.LocaleNames(), ", ")+")")
	hellofreshCmd.Flags().StringVarP(&saveDir, "save-dir", "s", "", "directory for the PDF files (default ./recipe-card-pdfs)")
	hellofreshCmd.Flags().IntVar(&parallel, "parallel", 0, "downloads per batch (default 10)")
	hellofreshCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retries per card after a connection reset (default 3)")
	hellofreshCmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpoint")
	hellofreshCmd.Flags().BoolVar(&withMeta, "metadata", false, "write a JSON metadata file next to each new card")
	hellofreshCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runHellofresh(cmd *cobra.Command, args []string) error {
	flags := globalFlags(cmd)
	if cmd.Flags().Changed("locale") {
		flags["locale"] = locale
	}
	if cmd.Flags().Changed("save-dir") {
		flags["save-dir"] = saveDir
	}
	if cmd.Flags().Changed("parallel") {
		flags["parallel"] = parallel
	}
	if cmd.Flags().Changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if cmd.Flags().Changed("resume") {
		flags["resume"] = resume
	}
	if cmd.Flags().Changed("metadata") {
		flags["metadata"] = withMeta
	}
	if cmd.Flags().Changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if cfg.Logging.NoColor {
		ui.DisableColor()
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("recipecards starting")

	ui.PrintBanner()
	ui.PrintInfo("Locale", strings.ToUpper(cfg.Search.Locale))
	ui.PrintInfo("Save directory", cfg.Output.SaveDirectory)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *scraper.Metrics
	if cfg.Metrics.Address != "" {
		metrics = scraper.NewMetrics()
		server := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", cfg.Metrics.Address).Info("Metrics server enabled")
	}

	s, err := scraper.New(cfg, scraper.WithLogger(log), scraper.WithMetrics(metrics))
	if err != nil {
		return err
	}

	report, err := s.Run(ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Crawl interrupted", "run again with --resume to continue")
			return nil
		}
		return err
	}

	ui.PrintSuccess("Recipe card download completed")
	return nil
}

func printReport(r *scraper.Report) {
	if r.Resumed {
		ui.PrintInfo("Resumed at offset", fmt.Sprint(r.StartOffset))
	}
	ui.PrintInfo("Pages", fmt.Sprintf("%d/%d", r.Pages, r.TotalPages))
	ui.PrintInfo("Recipes", fmt.Sprint(r.Total))
	ui.PrintInfo("Saved", fmt.Sprint(r.Summary.Saved))
	ui.PrintInfo("Already on disk", fmt.Sprint(r.Summary.Existing))
	ui.PrintInfo("Without card", fmt.Sprint(r.Summary.Skipped))
	ui.PrintInfo("Failed", fmt.Sprint(r.Summary.Failed))
	ui.PrintInfo("Duration", r.Duration.Round(time.Second).String())
}
