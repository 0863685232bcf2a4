package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zenapp/glimpse/internal/api"
	"github.com/zenapp/glimpse/internal/capture"
	"github.com/zenapp/glimpse/internal/config"
	"github.com/zenapp/glimpse/internal/coordinator"
	"github.com/zenapp/glimpse/internal/notes"
	slacknotice "github.com/zenapp/glimpse/internal/slack"
	"github.com/zenapp/glimpse/internal/storage"
	"github.com/zenapp/glimpse/internal/stream"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	slog.Info("glimpsed starting",
		"port", cfg.Port,
		"nats_url", cfg.NatsURL,
		"agent_url", cfg.AgentURL,
		"session", sessionID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connect to the push channel.
	nc, err := nats.Connect(cfg.NatsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()

	// Step 2: Build the capture pipeline.
	uploader, err := storage.NewS3Uploader(ctx, cfg.S3Bucket, cfg.S3KeyPrefix, cfg.S3Region, cfg.UploadURLTTL)
	if err != nil {
		slog.Error("failed to initialize uploader", "error", err)
		os.Exit(1)
	}
	capturer := capture.NewScreenCapturer(cfg.CaptureDir)
	pipeline := capture.New(capturer, uploader, capture.JPEGPreviewer{})

	// Step 3: Build the coordinator and its stream relay.
	relay := stream.NewRelay(cfg.AgentURL, sessionID, nc)
	coord := coordinator.New(relay)
	coord.SetCaptureDiscarder(pipeline.Discard)

	// Conditionally forward transient notices to Slack.
	var notifier *slacknotice.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackNoticeChannel != "" {
		notifier = slacknotice.NewNotifier(cfg.SlackBotToken, cfg.SlackNoticeChannel)
		slog.Info("Slack notice forwarding enabled", "channel", cfg.SlackNoticeChannel)
	}
	coord.SetNoticeFunc(func(text string) {
		slog.Warn("transient notice", "text", text)
		if err := nc.Publish(stream.NoticeSubject(sessionID), []byte(text)); err != nil {
			slog.Warn("failed to publish notice", "error", err)
		}
		if notifier != nil {
			nctx, ncancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer ncancel()
			if err := notifier.PostNotice(nctx, text); err != nil {
				slog.Warn("failed to post notice to Slack", "error", err)
			}
		}
	})

	// Step 4: Register the session's listeners. One live set per session;
	// the disposer releases all three on shutdown.
	subscriber := stream.NewSubscriber(nc, sessionID, coord)
	dispose, err := subscriber.Activate()
	if err != nil {
		slog.Error("failed to register session listeners", "error", err)
		os.Exit(1)
	}
	defer dispose()

	// Step 5: Open the notes database.
	store, err := notes.Open(cfg.NotesDBPath)
	if err != nil {
		slog.Error("failed to open notes database", "error", err, "path", cfg.NotesDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// Step 6: Start the HTTP command API.
	srv := api.NewServer(coord, pipeline, store, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("glimpsed ready", "port", cfg.Port, "session", sessionID)

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	cancel()
	pipeline.Discard()
	slog.Info("glimpsed stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
