package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/eventscope/internal/engine"
	"github.com/IshaanNene/eventscope/internal/export"
	"github.com/IshaanNene/eventscope/internal/types"
)

var (
	eventDate   string
	platforms   []string
	socialLinks map[string]string
	exportType  string
	outputDir   string
	printJSON   bool
	eventName   string
	platform    string
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSONTo(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventCmd creates the "event" subcommand.
func eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event [name]",
		Short: "Scrape every platform for one event",
		Long: `Search each platform for the event inside the window that starts on the
event date, scrape the event's own profiles, and export the merged report.`,
		Example: `  eventscope event "Summer Fest" --date 2024-06-10 --platforms reddit,twitter,news
  eventscope event "Summer Fest" --date 2024-06-10 --link instagram=https://www.instagram.com/summerfest/ -f csv`,
		Args: cobra.ExactArgs(1),
		RunE: runEvent,
	}

	cmd.Flags().StringVarP(&eventDate, "date", "d", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVarP(&platforms, "platforms", "p", nil, "platforms to search (default: every searchable platform)")
	cmd.Flags().StringToStringVarP(&socialLinks, "link", "l", nil, "event profile per platform, e.g. instagram=https://...")
	cmd.Flags().StringVarP(&exportType, "format", "f", "", "export format: csv, excel, json, jsonl, mongodb (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "export directory (default from config)")
	cmd.Flags().BoolVar(&printJSON, "print", false, "also print the report as JSON to stdout")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

// runEvent executes the event command.
func runEvent(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := time.Parse(time.DateOnly, eventDate)
	if err != nil {
		return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}

	exportCfg := a.cfg.Export
	if exportType != "" {
		exportCfg.Type = exportType
	}
	if outputDir != "" {
		exportCfg.OutputPath = outputDir
	}
	exp, err := export.New(exportCfg, a.logger)
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}
	defer exp.Close()

	req := engine.EventRequest{
		EventName:   args[0],
		EventDate:   date,
		Platforms:   platforms,
		SocialLinks: socialLinks,
	}
	if len(req.Platforms) == 0 && len(req.SocialLinks) == 0 {
		for _, info := range a.orch.Registry().List() {
			if info.Search {
				req.Platforms = append(req.Platforms, info.Name)
			}
		}
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	report, err := a.orch.ScrapeEvent(ctx, req)
	if err != nil {
		return err
	}

	receipt, err := exp.Export(ctx, report)
	a.metrics.ExportDone(exp.Name(), err)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	if len(report.Failures) > 0 {
		a.logger.Warn("some sources failed", "failures", describeFailures(report.Failures))
	}

	if printJSON {
		if err := printJSONTo(report); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "\nEvent %q scraped in %s\n", report.EventName, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "   Window:     %s .. %s\n", report.Window.Start.Format(time.DateOnly), report.Window.End.Format(time.DateOnly))
	fmt.Fprintf(os.Stderr, "   Posts:      %d\n", report.PostCount())
	fmt.Fprintf(os.Stderr, "   Engagement: %d\n", report.TotalEngagement)
	fmt.Fprintf(os.Stderr, "   Sentiment:  %s (%d positive, %d negative, %d neutral)\n",
		report.Sentiment.Overall(), report.Sentiment.Positive, report.Sentiment.Negative, report.Sentiment.Neutral)
	for _, res := range report.Results {
		fmt.Fprintf(os.Stderr, "   %-20s %d posts\n", res.Tag, len(res.Posts))
	}
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "   %-20s failed (%s): %s\n", f.Tag, f.Kind, f.Message)
	}
	fmt.Fprintf(os.Stderr, "   Output:     %s\n", receipt.Location)
	return nil
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Scrape individual post URLs",
		Long:  "Detect the platform of each URL, scrape the post behind it and print the normalized posts as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			if len(args) == 1 {
				post, err := a.orch.ScrapeURL(ctx, args[0], eventName)
				if err != nil {
					return err
				}
				return printJSONTo(post)
			}

			outcomes, err := a.orch.ScrapeURLs(ctx, args, eventName)
			if err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				if o.Error != "" {
					failed++
					a.logger.Warn("url failed", "url", o.URL, "kind", o.Kind, "error", o.Error)
				}
			}
			if err := printJSONTo(outcomes); err != nil {
				return err
			}
			if failed == len(outcomes) {
				return fmt.Errorf("all %d URLs failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&eventName, "event", "e", "", "event name attached to each post")
	return cmd
}

// profileCmd creates the "profile" subcommand.
func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [url]",
		Short: "Scrape one profile and report its engagement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			report, err := a.orch.ScrapeProfile(ctx, platform, args[0], eventName)
			if err != nil {
				return err
			}
			return printJSONTo(report)
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "platform of the profile (default: detected from the URL)")
	cmd.Flags().StringVarP(&eventName, "event", "e", "", "event name attached to the report")
	return cmd
}

// platformsCmd creates the "platforms" subcommand.
func platformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List enabled platforms and what each supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLATFORM\tSEARCH\tPROFILE\tSINGLE")
			for _, info := range a.orch.Registry().List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, yesNo(info.Search), yesNo(info.Profile), yesNo(info.Single))
			}
			return tw.Flush()
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

// describeFailures renders failures by kind, for log lines.
func describeFailures(fs []types.SourceFailure) string {
	byKind := make(map[types.ErrorKind][]string)
	for _, f := range fs {
		byKind[f.Kind] = append(byKind[f.Kind], f.Tag)
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, k+"="+strings.Join(byKind[types.ErrorKind(k)], ","))
	}
	return strings.Join(parts, " ")
}
