package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vnsched/internal/config"
	"vnsched/internal/entity"
	"vnsched/internal/ics"
	appLog "vnsched/internal/log"
	"vnsched/internal/model"
	"vnsched/internal/notify"
	"vnsched/internal/pipeline"
	"vnsched/internal/reminder"
	"vnsched/internal/store/sqlite"
	"vnsched/internal/tagger"
	"vnsched/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	parse      string
	ref        string
	utc        bool
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	p := pipeline.New(
		pipeline.WithTagger(newTagger(conf)),
		pipeline.WithClock(func() time.Time { return time.Now().In(conf.Location()) }),
	)

	if flags.parse != "" {
		if err := parseOnce(p, flags); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := serve(conf, p); err != nil {
		appLog.Error("vnsched stopped with error", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	defaultConfig := "config.yaml"
	if v := os.Getenv("VNSCHED_CONFIG"); v != "" {
		defaultConfig = v
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (env VNSCHED_CONFIG)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.parse, "parse", "", "Parse one sentence, print the event as JSON and exit")
	flag.StringVar(&cfg.ref, "ref", "", "Reference time for -parse, e.g. 2025-01-06T09:00")
	flag.BoolVar(&cfg.utc, "utc", false, "Print times of -parse in UTC")

	flag.Parse()

	return cfg
}

func newTagger(conf *config.Config) entity.Tagger {
	switch conf.Tagger.Mode {
	case "sidecar":
		appLog.Info("using sidecar tagger", "url", conf.Tagger.URL)
		return tagger.NewSidecar(conf.Tagger.URL, tagger.SidecarConfig{
			Timeout: time.Duration(conf.Tagger.TimeoutSeconds) * time.Second,
		})
	case "prose":
		return tagger.NewProse()
	default:
		return nil
	}
}

func parseOnce(p *pipeline.Pipeline, flags flagConfig) error {
	opts := pipeline.RunOptions{ToUTC: flags.utc}
	if flags.ref != "" {
		ts, err := model.ParseTimestamp(flags.ref)
		if err != nil {
			return fmt.Errorf("invalid -ref: %w", err)
		}
		opts.Reference = ts.Time
	}

	rec, err := p.Run(flags.parse, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(rec)
}

func serve(conf *config.Config, p *pipeline.Pipeline) error {
	appLog.Info("vnsched starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database", conf.Database,
		"tagger", conf.Tagger.Mode,
		"ics_count", len(conf.ICS),
	)

	st, err := sqlite.Open(conf.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := conf.Location()
	now := func() time.Time { return time.Now().In(loc) }

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	scanner := reminder.NewScanner(st, reminder.Multi{reminder.LogNotifier{}, hub}, now)
	if err := scanner.Start(ctx, conf.ReminderCron); err != nil {
		return err
	}
	defer scanner.Stop()

	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		sources = append(sources, ics.Source{ID: id, URL: c.URL})
	}
	syncer := ics.NewSyncer(st, sources, ics.SyncOptions{Location: loc, HorizonDays: conf.HorizonDays, Now: now})
	if err := syncer.Start(ctx, conf.ICSSyncCron); err != nil {
		return err
	}
	defer syncer.Stop()

	srv := web.NewServer(conf, web.Deps{Store: st, Pipeline: p, Hub: hub, Now: now})
	err = srv.Serve(ctx)
	appLog.Info("vnsched exiting")
	return err
}
