package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/stopmidnight/taskboard/internal/config"
	"github.com/stopmidnight/taskboard/internal/notify"
	"github.com/stopmidnight/taskboard/internal/relay"
	"github.com/stopmidnight/taskboard/internal/server"
	"github.com/stopmidnight/taskboard/internal/watch"
)

// ServeCmd returns the serve command.
func ServeCmd(cfg *config.Config, logger *logrus.Logger) *Command {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := flags.IntP("port", "p", 0, "Port to listen on [default: port from config]")
	altViewerRoot := flags.String("alt-viewer-root", "", "Fallback directory for /viewer/* files")

	return &Command{
		Flags: flags,
		Usage: "serve [flags]",
		Short: "Run the task viewer server",
		Long:  "Serve the doc root, the task API and the change event stream until interrupted.",
		Exec: func(ctx context.Context, _ *IO, _ []string) error {
			resolved := *cfg

			if *port != 0 {
				resolved.Port = *port
			}

			if *altViewerRoot != "" {
				resolved.AltViewerRoot = *altViewerRoot
				resolved.AltViewerRootAbs = *altViewerRoot

				if !filepath.IsAbs(*altViewerRoot) {
					resolved.AltViewerRootAbs = filepath.Join(cfg.EffectiveCwd, *altViewerRoot)
				}
			}

			if err := config.Validate(resolved); err != nil {
				return err
			}

			return serve(ctx, &resolved, logger)
		},
	}
}

// serve runs the HTTP server together with the watcher, keepalive and
// optional relay. All of them stop when ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	hub := notify.NewHub()

	var (
		rel   *relay.Relay
		extra notify.Publisher
	)

	if cfg.RedisURL != "" {
		rc, err := relay.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		defer rc.Close()

		rel = relay.New(rc, cfg.RedisChannel, hub, logger.WithField("component", "relay"))
		extra = rel

		logger.WithFields(logrus.Fields{
			"channel": cfg.RedisChannel,
			"origin":  rel.Origin(),
		}).Info("event relay enabled")
	}

	a := newApp(cfg, logger, hub, extra)
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	defer func() {
		cancel()
		wg.Wait()
	}()

	goRun := func(fn func()) {
		wg.Add(1)

		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if rel != nil {
		goRun(func() { rel.Run(ctx) })
	}

	goRun(func() { hub.Keepalive(ctx, cfg.KeepaliveInterval.Std()) })

	w := watch.New(watch.Config{
		Root:      cfg.RootAbs,
		Publisher: hub,
		Regen:     a.scheduler,
		Activity:  a.activity,
		Logger:    logger.WithField("component", "watch"),
		Debounce:  cfg.RegenDebounce.Std(),
	})

	goRun(func() {
		if err := w.Run(ctx); err != nil {
			logger.WithError(err).Warn("file watcher stopped")
		}
	})

	a.scheduler.Trigger("startup")

	srv := server.New(server.Config{
		Board:         a.board,
		Hub:           hub,
		Activity:      a.activity,
		FS:            a.fs,
		Root:          cfg.RootAbs,
		AltViewerRoot: cfg.AltViewerRootAbs,
		Logger:        logger.WithField("component", "http"),
	})

	fields := logrus.Fields{
		"root": cfg.RootAbs,
		"url":  "http://localhost:" + strconv.Itoa(cfg.Port) + "/viewer/index.html",
	}
	if cfg.AltViewerRootAbs != "" {
		fields["alt_viewer_root"] = cfg.AltViewerRootAbs
	}

	logger.WithFields(fields).Info("task viewer starting")

	return srv.Run(ctx, ":"+strconv.Itoa(cfg.Port))
}
