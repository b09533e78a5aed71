package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"dlerbot/internal/api"
	"dlerbot/internal/config"
	"dlerbot/internal/discord"
	"dlerbot/internal/jobapi"
	"dlerbot/internal/session"
)

var version = "dev"

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := app().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("application failed")
	}
}

func app() *cli.Command {
	return &cli.Command{
		Name:    "dlerbot",
		Version: version,
		Usage:   "Discord front-end for the media download job service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "config.yml",
				Sources: cli.EnvVars("DLERBOT_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); overrides log_level",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	manager := buildManager(cfg)
	baseCtx, baseCancel := context.WithCancel(context.Background())
	manager.SetBaseContext(baseCtx)

	bot, err := discord.New(discord.Options{
		Token:          cfg.Discord.Token,
		GuildID:        cfg.Discord.GuildID,
		RemoveCommands: cfg.Discord.RemoveCommands,
	}, manager)
	if err != nil {
		baseCancel()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })

	if cfg.HTTP.Port > 0 {
		srv := newHTTPServer(cfg.HTTP.Port, api.NewRouter(manager))
		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("ops api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("http server shutdown warning")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutdown signal received")
		gracefulShutdown(baseCancel, manager, shutdownTimeout)
		return nil
	})

	err = g.Wait()
	log.Info().Msg("bot exited")
	return err
}

func buildManager(cfg config.Config) *session.Manager {
	client := jobapi.New(cfg.JobService.BaseURL, cfg.JobService.RequestTimeout)
	return session.NewManager(session.Options{
		Jobs:              client,
		APIBaseURL:        client.BaseURL(),
		PublicBaseURL:     cfg.JobService.PublicBaseURL,
		PollInterval:      cfg.PollInterval,
		MaxPollDuration:   cfg.MaxPollDuration,
		SelectionTimeout:  cfg.SelectionTimeout,
		ActionTimeout:     cfg.ActionTimeout,
		MaxActiveSessions: cfg.MaxActiveSessions,
	})
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func gracefulShutdown(cancelBase context.CancelFunc, m *session.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m.Shutdown()
	cancelBase()
	if !m.WaitAll(ctx) {
		log.Warn().Msg("background workers did not finish before timeout")
	}
}
