package core

import (
	"fmt"
	"time"

	"github.com/automoto/boxman/config"
	"github.com/getsentry/sentry-go"
)

type GameLoop struct {
	server   *Server
	tickRate int
	stopChan chan struct{}
	done     chan struct{}
}

func NewGameLoop(server *Server, tickRate int) *GameLoop {
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run ticks the server until Stop is called. A panic in the tick is
// reported to sentry before it propagates.
func (g *GameLoop) Run() {
	defer close(g.done)
	defer func() {
		if err := recover(); err != nil {
			logger.Error("game loop panic", "err", err, "tick", g.server.Stats.Ticks)
			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("component", "game_loop")
				scope.SetTag("players", fmt.Sprint(g.server.PlayerCount()))
			})
			hub.Recover(err)
			hub.Flush(5 * time.Second)
			panic(err)
		}
	}()

	ticker := time.NewTicker(config.TickDuration(g.tickRate))
	defer ticker.Stop()

	logger.Info("game loop started", "tickrate", g.tickRate)

	for {
		select {
		case <-g.stopChan:
			logger.Info("game loop stopped", "ticks", g.server.Stats.Ticks)
			return
		case <-ticker.C:
			g.server.Tick()
		}
	}
}

// Stop ends Run and waits for the current tick to finish, up to timeout.
func (g *GameLoop) Stop(timeout time.Duration) bool {
	close(g.stopChan)
	select {
	case <-g.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
