package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/boxman/assets"
	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/server/core"
	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
)

func main() {
	port := flag.Uint("port", uint(config.Server.Port), "Server port")
	tickRate := flag.Int("tickrate", config.Server.TickRate, "Server tick rate (updates per second)")
	maxPlayers := flag.Int("maxplayers", config.Server.MaxPlayers, "Maximum connected players")
	level := flag.String("level", assets.DefaultLevel, "Level to load")
	version := flag.String("version", "", "Required client version (empty = accept any)")
	sentryDSN := flag.String("sentry-dsn", os.Getenv("SENTRY_DSN"), "Sentry DSN for crash reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	if *sentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSN, Release: *version}); err != nil {
			log.Error("sentry init failed", "err", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	levels, names, err := core.LoadAllServerLevels(assets.FS())
	if err != nil {
		log.Fatal("failed to load levels", "err", err)
	}
	serverLevel, ok := levels[*level]
	if !ok {
		log.Fatal("unknown level", "level", *level, "available", names)
	}

	opts := core.DefaultOptions()
	opts.TickRate = *tickRate
	opts.MaxPlayers = *maxPlayers

	server := core.NewServer(serverLevel, opts)
	loop := core.NewGameLoop(server, *tickRate)
	transport := core.NewTransport(server, *version, config.Server.InputQueueLimit)

	go loop.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down server")
		if !loop.Stop(config.Server.ShutdownTimeout) {
			log.Warn("game loop did not stop in time")
		}
		sentry.Flush(2 * time.Second)
		os.Exit(0)
	}()

	log.Info("starting boxman server", "port", *port, "tickrate", *tickRate, "level", serverLevel.Name, "version", *version)
	if err := transport.Listen(*port); err != nil {
		log.Fatal("server error", "err", err)
	}
}
