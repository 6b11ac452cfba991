// feedtail connects to configured live rooms and streams merged events to console.
// Usage: go run ./cmd/feedtail --config configs/feed.example.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/c-basalt/yumi-feed/internal/api"
	"github.com/c-basalt/yumi-feed/internal/auth"
	"github.com/c-basalt/yumi-feed/internal/config"
	"github.com/c-basalt/yumi-feed/internal/event"
	"github.com/c-basalt/yumi-feed/internal/merge"
	"github.com/c-basalt/yumi-feed/internal/registry"
	"github.com/c-basalt/yumi-feed/internal/room"
	"github.com/c-basalt/yumi-feed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feed.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("feedtail", version.String())
		return
	}

	// Setup logger
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Load viewer cookies when configured; anonymous otherwise
	apiOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	}
	if cfg.API.CookieFile != "" {
		cookies, err := auth.LoadFile(cfg.API.CookieFile)
		if err != nil {
			logger.Error("failed to load cookie file", "path", cfg.API.CookieFile, "error", err)
			os.Exit(1)
		}
		apiOpts = append(apiOpts, api.WithCookies(cookies))
	}

	apiClient := api.NewClient(cfg.API.BaseURL, nil, apiOpts...)

	roomCfg := room.Config{
		RingSize:          cfg.Stream.RingSize,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		ReadGrace:         cfg.Stream.ReadGrace,
		DialTimeout:       cfg.Stream.DialTimeout,
		WriteTimeout:      cfg.Stream.WriteTimeout,
		ReconnectBackoff:  cfg.Stream.ReconnectBackoff,
		CandidateTTL:      cfg.Stream.CandidateTTL,
	}

	reg := registry.New(apiClient, roomCfg, logger)
	defer reg.Close()

	merger := merge.New(merge.Config{
		QueueSize:      cfg.Merger.QueueSize,
		WindowSize:     cfg.Merger.WindowSize,
		WindowDuration: cfg.Merger.WindowDuration,
	}, nil, logger)
	defer merger.Close()

	logger.Info("starting room connections", "rooms", len(cfg.Rooms))
	if err := reg.UpdateRooms(ctx, cfg.Rooms); err != nil {
		logger.Error("failed to start rooms", "error", err)
		os.Exit(1)
	}

	for _, id := range cfg.Rooms {
		conn, ok := reg.Get(id)
		if !ok {
			logger.Error("room missing after startup", "room", id)
			os.Exit(1)
		}
		sub, err := conn.Subscribe(0)
		if err != nil {
			logger.Error("failed to subscribe", "room", id, "error", err)
			os.Exit(1)
		}
		if err := merger.AddSource(sub.Chan()); err != nil {
			logger.Error("failed to attach room to merger", "room", id, "error", err)
			os.Exit(1)
		}
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := reg.Stats()
				logger.Info("stats",
					"rooms", stats.Rooms,
					"connected", stats.Connected,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		env, err := merger.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, merge.ErrClosed) {
				break
			}
			logger.Error("merger stopped", "error", err)
			break
		}
		printEvent(env, *verbose)
	}

	logger.Info("shutting down...")
	reg.Close()
	merger.Close()
	logger.Info("shutdown complete")
}

func printEvent(env event.Envelope, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(env.Event.Data, "", "  ")
		fmt.Printf("[%s] #%d %s\n", env.Event.Cmd, env.Index, data)
		return
	}

	switch env.Event.Cmd {
	case "DANMU_MSG":
		user, text := danmuFields(env.Event.Data)
		fmt.Printf("[CHAT] %s: %s\n", user, text)
	case "SEND_GIFT":
		data, _ := env.Event.Data["data"].(map[string]any)
		fmt.Printf("[GIFT] %v x%v from %v\n", data["giftName"], data["num"], data["uname"])
	case "SUPER_CHAT_MESSAGE":
		data, _ := env.Event.Data["data"].(map[string]any)
		fmt.Printf("[SC] %v CNY: %v\n", data["price"], data["message"])
	default:
		fmt.Printf("[%s] #%d\n", env.Event.Cmd, env.Index)
	}
}

// danmuFields pulls the sender name and message text out of the
// positional info array.
func danmuFields(payload map[string]any) (user, text string) {
	info, _ := payload["info"].([]any)
	if len(info) > 1 {
		text, _ = info[1].(string)
	}
	if len(info) > 2 {
		if sender, ok := info[2].([]any); ok && len(sender) > 1 {
			user, _ = sender[1].(string)
		}
	}
	return user, text
}
