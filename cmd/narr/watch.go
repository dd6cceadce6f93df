package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/flashnarrative/internal/logging"
	"github.com/abelbrown/flashnarrative/internal/mention"
	"github.com/abelbrown/flashnarrative/internal/metrics"
	"github.com/abelbrown/flashnarrative/internal/monitor"
)

// runWatch re-runs one query on a fixed interval and prints a line per run.
// Adapters are wrapped in circuit breakers that persist between runs, and
// Prometheus metrics are served while the loop is alive.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	qf := addQueryFlags(fs)
	interval := fs.Duration("interval", 0, "Time between runs (default from config, 15m)")
	addr := fs.String("metrics", "", "Address for the /metrics endpoint (default from config)")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	initLogging(cfg, *qf.verbose)
	defer logging.Close()

	every := *interval
	if every <= 0 {
		every = cfg.WatchInterval()
	}
	if every <= 0 {
		every = 15 * time.Minute
	}
	if *addr != "" {
		cfg.Watch.MetricsAddr = *addr
	}

	q := qf.query()
	if err := q.Validate(); err != nil {
		fatalf("invalid query: %v", err)
	}
	campaign := qf.phrases()
	if len(campaign) == 0 {
		campaign = cfg.Analysis.CampaignPhrases
	}

	events := openEvents(cfg)
	defer events.Close()
	st := openCache(cfg)
	defer st.Close()
	st.SetEvents(events)

	m := metrics.New()
	svc := newService(cfg, st, events, extras{metrics: m, breakers: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serveMetrics(cfg.Watch.MetricsAddr, m)
	if srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Println(title(fmt.Sprintf("Watching %s every %s", q.Brand, every)))
	if srv != nil {
		fmt.Println(dimStyle.Render("  metrics on http://" + srv.Addr + "/metrics"))
	}

	watch(ctx, every, func(ctx context.Context) {
		r, err := svc.Run(ctx, q, campaign)
		if err != nil {
			logging.Error("watch run failed", "err", err)
			return
		}
		fmt.Println(watchLine(r))
	})
}

// watch calls run immediately and then on every tick until ctx is done.
func watch(ctx context.Context, every time.Duration, run func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// serveMetrics starts the /metrics listener, or returns nil when addr is
// empty.
func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	return srv
}

func watchLine(r monitor.Report) string {
	cache := dimStyle.Render("fetched")
	if r.CacheHit {
		cache = dimStyle.Render("cached")
	}
	failed := 0
	for _, s := range r.Stages {
		if s.Err != nil {
			failed++
		}
	}
	line := fmt.Sprintf("%s  %4d mentions  MIS %-4d MPI %5.1f%%  %s %5.1f%%  %s %5.1f%%  %s",
		r.GeneratedAt.Format("15:04:05"),
		r.KPIs.Total,
		r.KPIs.MIS,
		r.KPIs.MPI,
		okStyle.Render("pos"), r.KPIs.Ratio(mention.Positive),
		errStyle.Render("neg"), r.KPIs.Ratio(mention.Negative),
		cache,
	)
	if failed > 0 {
		line += "  " + skipStyle.Render(fmt.Sprintf("%d adapter(s) failed", failed))
	}
	return line
}
