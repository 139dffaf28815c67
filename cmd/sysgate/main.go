package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/natefinch/lumberjack"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cloudbox/sysgate/auth"
	"github.com/cloudbox/sysgate/collector"
	"github.com/cloudbox/sysgate/gateway"
	"github.com/cloudbox/sysgate/provider"
	"github.com/cloudbox/sysgate/resolver"
	"github.com/cloudbox/sysgate/stats"
)

const (
	logMaxSizeMB  = 5
	logMaxAgeDays = 14
	logMaxBackups = 5

	shutdownTimeout = 10 * time.Second
)

var (
	// release variables
	Version   = "dev"
	Timestamp string
	GitCommit string

	// CLI
	cli struct {
		globals

		// flags
		Config    string `type:"path" default:"${config_file}" env:"SYSGATE_CONFIG" help:"Config file path"`
		Log       string `type:"path" default:"${log_file}" env:"SYSGATE_LOG" help:"Log file path"`
		Verbosity int    `type:"counter" default:"0" short:"v" env:"SYSGATE_VERBOSITY" help:"Log level verbosity"`
		LogLevel  string `default:"" env:"SYSGATE_LOG_LEVEL" help:"Log level (trace,debug,info,warn,error,fatal)"`

		// overrides
		Bind       string `short:"B" env:"SYSGATE_BIND" help:"Address to listen on"`
		Port       int    `short:"p" env:"SYSGATE_PORT" help:"Port to listen on"`
		CachedTime string `env:"SYSGATE_CACHED_TIME" help:"Minimum time between snapshot refreshes, e.g. 2s"`

		Check bool `help:"Check the health endpoint of a running instance and exit"`
	}
)

type globals struct {
	Version versionFlag `name:"version" help:"Print version information and quit"`
}

type versionFlag string

func (versionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (versionFlag) IsBool() bool                       { return true }
func (versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error { //nolint:unparam // satisfies kong.Hook interface
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

func main() {
	// parse cli
	ctx := kong.Parse(&cli,
		kong.Name("sysgate"),
		kong.Description("Serve system metrics over XML-RPC"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Summary: true,
			Compact: true,
		}),
		kong.Vars{
			"version":     fmt.Sprintf("%s (%s@%s)", Version, GitCommit, Timestamp),
			"config_file": filepath.Join(defaultConfigDirectory("sysgate", "config.yml"), "config.yml"),
			"log_file":    filepath.Join(defaultConfigDirectory("sysgate", "config.yml"), "activity.log"),
		},
	)

	if err := ctx.Validate(); err != nil {
		fmt.Println("Failed parsing cli:", err)
		os.Exit(1)
	}

	// logger
	setupLogger()

	// config
	cfg := loadConfig()

	if cli.Check {
		if err := checkHealth(context.Background(), healthURL(cfg.Bind, cfg.Port)); err != nil {
			log.Fatal().
				Err(err).
				Msg("Health Check Failed")
		}

		log.Info().Msg("Health Check Passed")
		return
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stats + auth
	st := stats.New()
	gate := initGate(runCtx, cfg, st)

	// provider
	prov := initProvider(runCtx, cfg, st)

	res, err := resolver.New(resolver.Config{
		Provider: prov,
		Aliases:  cfg.Aliases,
		Version:  Version,
	})
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Resolver Init Failed")
	}

	log.Info().
		Strs("groups", prov.Groups()).
		Int("aliases", len(cfg.Aliases)).
		Msg("Resolver Initialised")

	// server
	srv := gateway.New(gateway.Config{
		Resolver:  res,
		Gate:      gate,
		Stats:     st,
		Verbosity: cfg.Verbosity,
	})

	ln, err := gateway.Listen(cfg.Bind, cfg.Port)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("bind", cfg.Bind).
			Int("port", cfg.Port).
			Msg("Server Start Failed")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	// gateway stats
	scheduler, err := startStats(cfg.StatsSchedule, st, prov)
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Stats Init Failed")
	}

	// display initialised banner
	log.Info().
		Str("version", fmt.Sprintf("%s (%s@%s)", Version, GitCommit, Timestamp)).
		Str("addr", ln.Addr().String()).
		Dur("cached_time", time.Duration(cfg.CachedTime)).
		Msg("Sysgate Initialised")

	notifyReady()

	select {
	case <-runCtx.Done():
		log.Info().Msg("Shutdown Signal")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("Server Failed")
		}
	}

	shutdown(srv, scheduler)
}

// initGate builds the credential gate from the configured users and password
// file. Calls log.Fatal on any credential error.
func initGate(ctx context.Context, cfg config, st *stats.Stats) *auth.Gate {
	gate := auth.New(auth.Config{
		Cost:      cfg.Auth.BcryptCost,
		Stats:     st,
		Verbosity: cfg.Verbosity,
	})

	for _, u := range cfg.Auth.Users {
		var err error
		if strings.HasPrefix(u.Password, "$2") {
			err = gate.AddDigest(u.Username, u.Password)
		} else {
			err = gate.AddCredential(u.Username, u.Password)
		}

		if err != nil {
			log.Fatal().
				Err(err).
				Str("username", u.Username).
				Msg("Credential Init Failed")
		}
	}

	if cfg.Auth.PasswordFile != "" {
		if err := gate.WatchFile(ctx, cfg.Auth.PasswordFile); err != nil {
			log.Fatal().
				Err(err).
				Str("path", cfg.Auth.PasswordFile).
				Msg("Password File Init Failed")
		}
	}

	// Check authentication. If no auth -> warn user.
	if !gate.Enabled() {
		log.Warn().Msg("RPC Unauthenticated")
	} else {
		log.Info().
			Strs("users", gate.Users()).
			Msg("Authentication Enabled")
	}

	return gate
}

// initProvider performs the initial collection and returns the provider.
// Calls log.Fatal on initialisation error.
func initProvider(ctx context.Context, cfg config, st *stats.Stats) *provider.Provider {
	col := collector.New(collector.Config{
		ProcessCache: time.Duration(cfg.ProcessCache),
		Verbosity:    cfg.Verbosity,
	})

	prov, err := provider.New(ctx, provider.Config{
		Collector:      col,
		CachedInterval: time.Duration(cfg.CachedTime),
		Include:        cfg.Groups.Include,
		Exclude:        cfg.Groups.Exclude,
		Stats:          st,
		Verbosity:      cfg.Verbosity,
	})
	if err != nil {
		log.Fatal().
			Err(err).
			Msg("Provider Init Failed")
	}

	log.Info().
		Dur("cached_time", time.Duration(cfg.CachedTime)).
		Strs("include", cfg.Groups.Include).
		Strs("exclude", cfg.Groups.Exclude).
		Msg("Provider Initialised")

	return prov
}

// notifyReady tells systemd the gateway is serving.
func notifyReady() {
	sdOK, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn().Err(err).Msg("sd_notify Failed")
	} else if sdOK {
		log.Info().Msg("sd_notify Ready Sent")
	}
}

// shutdown stops the stats schedule and drains in-flight calls.
func shutdown(srv *gateway.Server, scheduler *cron.Cron) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Close(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown Failed")
		return
	}

	log.Info().Msg("Sysgate Stopped")
}

// setupLogger configures the global zerolog logger using the CLI flags.
// Log level is set from --log-level if provided, otherwise from verbosity count.
func setupLogger() {
	logger := log.Output(io.MultiWriter(zerolog.ConsoleWriter{
		TimeFormat: time.Stamp,
		Out:        os.Stderr,
	}, &lumberjack.Logger{
		Filename:   cli.Log,
		MaxSize:    logMaxSizeMB,
		MaxAge:     logMaxAgeDays,
		MaxBackups: logMaxBackups,
	}))

	if cli.LogLevel != "" {
		level, err := zerolog.ParseLevel(cli.LogLevel)
		if err != nil {
			log.Logger = logger.Level(zerolog.InfoLevel)
			log.Fatal().Str("level", cli.LogLevel).Msg("Invalid Log Level")
		}

		log.Logger = logger.Level(level)

		return
	}

	switch {
	case cli.Verbosity == 1:
		log.Logger = logger.Level(zerolog.DebugLevel)
	case cli.Verbosity > 1:
		log.Logger = logger.Level(zerolog.TraceLevel)
	default:
		log.Logger = logger.Level(zerolog.InfoLevel)
	}
}
