// cmd/syncee/main.go
//
// syncee – pull ExpressionEngine templates, snippets, and global variables
// from a remote site into ./ee.
//
// Run life-cycle
// --------------
//
//  1. Load env vars (.env in the working directory).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load conf/sites.yaml; vault: passwords are resolved when VAULT_ADDR
//     is set.  Any invalid site aborts here, before any remote call.
//
//  4. Pick the site: first CLI argument, or the one-key menu.
//
//  5. Build the transport (exec | ssh | mysql) and sync every kind.
//
//  6. Export metrics to a textfile when metrics_file is set.
//
// Exit status is non-zero for configuration, site-lookup, or filesystem
// failures.  A failed fetch for one kind is logged and the run continues.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yanizio/syncee/internal/config"
	"github.com/yanizio/syncee/internal/database"
	"github.com/yanizio/syncee/internal/dump"
	"github.com/yanizio/syncee/internal/logger"
	"github.com/yanizio/syncee/internal/metrics"
	"github.com/yanizio/syncee/internal/prompt"
	"github.com/yanizio/syncee/internal/remote"
	"github.com/yanizio/syncee/internal/syncer"
	"github.com/yanizio/syncee/internal/vault"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { _ = godotenv.Load() }

func main() {
	debug := flag.Bool("debug", false, "log commands and write raw dumps to <site>-<kind>.txt")
	confPath := flag.String("config", "", "path to sites.yaml (default: conf/sites.yaml above the cwd)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [site-key]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	os.Exit(run(*confPath, flag.Arg(0), *debug))
}

func run(confPath, siteKey string, debugFlag bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wd, _ := os.Getwd()
	logOut, err := logger.New(wd, runningInTTY(), debugFlag)
	if err != nil {
		log.Printf("start logger: %v", err)
		return 1
	}
	defer logOut.Sync()

	//
	// ── 1.  Configuration ───────────────────────────────────────────────
	//
	var secrets config.SecretReader
	if os.Getenv("VAULT_ADDR") != "" {
		cli, err := vault.New(logOut.Debugf)
		if err != nil {
			logOut.Errorw("vault client", "err", err)
			return 1
		}
		secrets = cli
	}

	if confPath == "" {
		confPath = config.Path()
	}
	cfg, err := config.LoadFile(ctx, confPath, secrets)
	if err != nil {
		logOut.Errorw("configuration rejected", "file", confPath, "err", err)
		return 1
	}
	debug := debugFlag || cfg.Debug

	//
	// ── 2.  Site choice ─────────────────────────────────────────────────
	//
	if siteKey == "" {
		msg, keys := prompt.SiteMenu(filepath.Base(cfg.Paths.Root), cfg.Sites)
		siteKey, err = prompt.New(os.Stdin, os.Stdout).Choose(msg, keys)
		if err != nil || siteKey == prompt.QuitKey {
			return 0
		}
	}
	site, ok := cfg.Site(siteKey)
	if !ok {
		logOut.Errorw("unknown site", "key", siteKey)
		return 1
	}

	//
	// ── 3.  Transport ───────────────────────────────────────────────────
	//
	fetcher, closeFn, err := newFetcher(ctx, cfg, site, logOut)
	if err != nil {
		logOut.Errorw("transport setup failed", "transport", cfg.Transport, "err", err)
		return 1
	}
	defer closeFn()

	//
	// ── 4.  Sync ────────────────────────────────────────────────────────
	//
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = wd
	}
	s := syncer.New(site, fetcher, osfs.New(outDir),
		syncer.WithLogger(logOut.With("site", site.Key)),
		syncer.WithDebug(debug),
		syncer.WithCharset(dump.Charset(cfg.Charset)),
	)

	code := 0
	reports, err := s.Run(ctx)
	for _, r := range reports {
		logOut.Infow("kind done",
			"kind", r.Kind.String(),
			"state", r.State.String(),
			"records", r.Records,
			"written", r.Written,
			"slot", r.Slot,
		)
	}
	if err != nil {
		logOut.Errorw("sync aborted", "err", err)
		code = 1
	}

	if cfg.MetricsFile != "" {
		if err := metrics.Export(cfg.MetricsFile); err != nil {
			logOut.Warnw("metrics export failed", "file", cfg.MetricsFile, "err", err)
		}
	}
	return code
}

// newFetcher builds the configured transport.  The returned func releases
// any connection it holds.
func newFetcher(ctx context.Context, cfg *config.Config, site config.Site, log *zap.SugaredLogger) (remote.Fetcher, func(), error) {
	noop := func() {}
	switch cfg.Transport {
	case config.TransportSSH:
		f, err := remote.NewSSH(site, cfg.SSH, log)
		return f, noop, err
	case config.TransportMySQL:
		db, err := database.Open(ctx, database.DSN(site))
		if err != nil {
			return nil, noop, err
		}
		return &remote.Direct{DB: db}, func() { db.Close() }, nil
	default:
		return &remote.Exec{Site: site, Log: log}, noop, nil
	}
}
