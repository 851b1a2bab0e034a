// Command feedcheck fetches the configured feeds once and prints what each
// one produced: record count, error kind and the first few records.
//
// Usage:
//
//	go run ./cmd/feedcheck --feed rain --feed stage --lang en
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/cityops-feeds-service/internal/aggregator"
	"github.com/couchcryptid/cityops-feeds-service/internal/config"
	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/fetcher"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
	"github.com/couchcryptid/cityops-feeds-service/internal/parser"
)

type options struct {
	BaseURL   string        `long:"base-url" env:"FEEDS_BASE_URL" default:"https://aplicativo.cor.rio/api" description:"Origin for the built-in feed table"`
	FeedsFile string        `long:"feeds-file" env:"FEEDS_FILE" description:"YAML feed table replacing the built-in one"`
	Feeds     []string      `long:"feed" short:"f" description:"Feed ID to check (repeatable, default all)"`
	Lang      string        `long:"lang" short:"l" default:"pt" description:"Language code for localized feeds"`
	Timeout   time.Duration `long:"timeout" default:"10s" description:"Per-feed deadline"`
	Retries   int           `long:"retries" default:"0" description:"Retries for transient failures"`
	Show      int           `long:"show" default:"3" description:"Records to print per feed"`
	ImageBase string        `long:"image-base-url" env:"IMAGE_BASE_URL" default:"https://aplicativo.cor.rio" description:"Origin for relative event images"`
	UserAgent string        `long:"user-agent" default:"cityops-feedcheck/1.0" description:"User agent for feed requests"`
	Verbose   bool          `long:"verbose" short:"v" description:"Log fetch details to stderr"`
}

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.Default)
	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}
	os.Exit(run(context.Background(), opts, os.Stdout, os.Stderr))
}

// run returns 0 when every selected feed produced data without error, 1 when
// at least one failed, and 2 on usage errors.
func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	level := slog.LevelError
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	feeds, err := selectFeeds(opts)
	if err != nil {
		fmt.Fprintln(stderr, "feedcheck:", err)
		return 2
	}

	metrics := observability.NewMetricsForRegistry(prometheus.NewRegistry())
	coord, err := aggregator.New(feeds, fetcher.New(opts.UserAgent, logger), parser.New(opts.ImageBase), logger, metrics, aggregator.Options{
		FeedTimeout: opts.Timeout,
		Retries:     opts.Retries,
		Locale:      domain.MatchLocale(opts.Lang),
	})
	if err != nil {
		fmt.Fprintln(stderr, "feedcheck:", err)
		return 2
	}
	defer coord.Close()

	snap := coord.RunCycle(ctx)
	for _, id := range snap.Feeds() {
		res, _ := snap.Result(id)
		if res.Err != nil {
			fmt.Fprintf(stdout, "%-10s %-18s FAILED %s: %v\n", id, res.Shape, domain.KindOf(res.Err), res.Err)
			continue
		}
		fmt.Fprintf(stdout, "%-10s %-18s %d records\n", id, res.Shape, len(res.Records))
		for i, rec := range res.Records {
			if i >= opts.Show {
				break
			}
			line, _ := json.Marshal(rec)
			fmt.Fprintf(stdout, "    %s\n", line)
		}
	}
	if snap.Stage() != 0 {
		fmt.Fprintf(stdout, "stage %d\n", snap.Stage())
	}

	if len(snap.Failed()) > 0 {
		return 1
	}
	return 0
}

func selectFeeds(opts options) ([]domain.FeedDescriptor, error) {
	all := domain.DefaultFeeds(opts.BaseURL)
	if opts.FeedsFile != "" {
		loaded, err := config.LoadFeeds(opts.FeedsFile, opts.BaseURL)
		if err != nil {
			return nil, err
		}
		all = loaded
	}
	if len(opts.Feeds) == 0 {
		return all, nil
	}

	byID := make(map[domain.FeedID]domain.FeedDescriptor, len(all))
	for _, d := range all {
		byID[d.ID] = d
	}
	out := make([]domain.FeedDescriptor, 0, len(opts.Feeds))
	for _, id := range opts.Feeds {
		d, ok := byID[domain.FeedID(id)]
		if !ok {
			return nil, fmt.Errorf("unknown feed %q", id)
		}
		out = append(out, d)
	}
	return out, nil
}
