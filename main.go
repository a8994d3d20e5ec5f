package main

import (
	"errors"
	"flag"

	"github.com/automoto/boxman/assets"
	"github.com/automoto/boxman/config"
	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/scenes"
	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
)

type Scene interface {
	Update() error
	Draw(screen *ebiten.Image)
}

type Game struct {
	scene Scene
}

func (g *Game) Update() error {
	return g.scene.Update()
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
}

func (g *Game) Layout(width, height int) (int, int) {
	return config.Client.WindowWidth, config.Client.WindowHeight
}

func main() {
	// Initialize persistence and load saved settings
	if err := config.InitPersistence("boxman"); err == nil {
		if saved, err := config.LoadSettings(); err == nil {
			config.ApplySettings(saved)
		}
	}

	address := flag.String("addr", config.Client.Address, "Server address (host:port)")
	name := flag.String("name", config.Client.Name, "Player name")
	level := flag.String("level", assets.DefaultLevel, "Level the server runs")
	version := flag.String("version", "", "Client version sent on join")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	config.Client.Address = *address
	config.Client.Name = *name
	if err := config.SaveSettings(config.CurrentSettings()); err != nil {
		log.Warn("could not save settings", "err", err)
	}

	data, err := assets.LoadLevel(*level)
	if err != nil {
		names, _ := assets.LevelNames()
		log.Fatal("failed to load level", "err", err, "available", names)
	}

	client := network.NewClient(config.Client.InboxLimit)
	client.Connect(*address)
	defer client.Disconnect()

	ebiten.SetWindowSize(config.Client.WindowWidth, config.Client.WindowHeight)
	ebiten.SetWindowTitle("boxman")
	ebiten.SetTPS(config.Client.TickRate)

	game := &Game{scene: scenes.NewNetworkedScene(client, data, *name, *version)}
	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal("game exited", "err", err)
	}
}
