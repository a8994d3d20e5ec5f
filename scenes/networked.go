package scenes

import (
	"fmt"
	"image/color"
	"time"

	"github.com/automoto/boxman/network"
	"github.com/automoto/boxman/shared/collision"
	"github.com/automoto/boxman/shared/leveldata"
	"github.com/automoto/boxman/shared/netcomponents"
	"github.com/automoto/boxman/systems"
	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	cfg "github.com/automoto/boxman/config"
)

var logger = log.WithPrefix("viewer")

// NetworkedScene connects to a server, predicts the local character once per
// ebiten update and draws the level top-down.
type NetworkedScene struct {
	netClient *network.Client
	sim       *systems.ClientSim
	level     *leveldata.CollisionData
	input     *InputReader
	view      TopDown

	name    string
	version string

	joinRequested bool
	yawSynced     bool
	debug         bool

	tickDur   time.Duration
	lastTick  time.Time
	lastFrame time.Time
}

func NewNetworkedScene(client *network.Client, level *leveldata.CollisionData, name, version string) *NetworkedScene {
	opts := systems.DefaultClientOptions()
	return &NetworkedScene{
		netClient: client,
		sim:       systems.NewClientSim(client, collision.FromLevel(level), opts),
		level:     level,
		input:     NewInputReader(0),
		view:      TopDown{Scale: cfg.Client.PixelsPerM, Width: level.Width, Depth: level.Depth},
		name:      name,
		version:   version,
		tickDur:   cfg.TickDuration(opts.TickRate),
	}
}

func (ns *NetworkedScene) Update() error {
	if justPressed(ActionQuit) {
		return ebiten.Termination
	}
	if justPressed(ActionToggleDebug) {
		ns.debug = !ns.debug
	}

	if ns.netClient.State() == network.StateConnected && !ns.joinRequested {
		if err := ns.sim.RequestJoin(ns.name, ns.version); err != nil {
			logger.Warn("join request failed", "err", err)
		} else {
			ns.joinRequested = true
		}
	}

	ns.sim.ReceiveMessages()
	ns.syncYaw()
	ns.sim.FixedTick(ns.input.Read(ns.tickDur.Seconds()))
	ns.lastTick = time.Now()
	return nil
}

// syncYaw starts the view facing the way the server spawned us.
func (ns *NetworkedScene) syncYaw() {
	if ns.yawSynced {
		return
	}
	entry, ok := ns.sim.LocalEntry()
	if !ok {
		return
	}
	ns.input.Yaw = netcomponents.Body.Get(entry).State.Yaw
	ns.yawSynced = true
}

func (ns *NetworkedScene) Draw(screen *ebiten.Image) {
	now := time.Now()
	frameDt := 0.0
	if !ns.lastFrame.IsZero() {
		frameDt = now.Sub(ns.lastFrame).Seconds()
	}
	ns.lastFrame = now

	overstep := 0.0
	if !ns.lastTick.IsZero() {
		overstep = min(float64(now.Sub(ns.lastTick))/float64(ns.tickDur), 1)
	}
	ns.sim.Frame(frameDt, overstep)

	screen.Fill(color.Black)
	DrawLevel(screen, ns.view, ns.level)
	DrawCharacters(screen, ns.view, ns.sim, ns.debug)
	DrawNetworkHUD(screen, ns.status(), ns.sim)
}

func (ns *NetworkedScene) status() string {
	if ns.sim.Rejected != "" {
		return "rejected: " + ns.sim.Rejected
	}
	state := ns.netClient.State()
	if state == network.StateError {
		return fmt.Sprintf("error: %v", ns.netClient.LastError())
	}
	if id, ok := ns.sim.LocalID(); ok {
		return fmt.Sprintf("%s as #%d", state, id)
	}
	return state.String()
}

func justPressed(action ActionID) bool {
	for _, k := range Input.Bindings[action].Keys {
		if inpututil.IsKeyJustPressed(k) {
			return true
		}
	}
	return false
}
