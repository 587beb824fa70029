// Package ui is the ebiten host shell: it pumps the engine, presents
// the framebuffer, feeds the platform audio device from the sample
// callback, and translates keyboard state into joypad events. It sits
// outside the core; the engine never depends on it.
package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/tmby-console/core/internal/bus"
	"github.com/tmby-console/core/internal/engine"
	"github.com/tmby-console/core/internal/ppu"
)

// Config holds window and audio settings.
type Config struct {
	Title      string
	Scale      int
	SampleRate int
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "Fantasy Console"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
}

var keymap = map[ebiten.Key]bus.Button{
	ebiten.KeyArrowRight: bus.BtnRight,
	ebiten.KeyArrowLeft:  bus.BtnLeft,
	ebiten.KeyArrowUp:    bus.BtnUp,
	ebiten.KeyArrowDown:  bus.BtnDown,
	ebiten.KeyZ:          bus.BtnA,
	ebiten.KeyX:          bus.BtnB,
	ebiten.KeyBackspace:  bus.BtnSelect,
	ebiten.KeyEnter:      bus.BtnStart,
}

// App implements ebiten.Game around an engine.
type App struct {
	cfg Config
	eng *engine.Engine

	tex        *ebiten.Image
	frameReady bool
	stopped    bool

	held map[ebiten.Key]bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	stream      *sampleStream
}

// NewApp wires an App to an engine and registers the engine callbacks.
func NewApp(cfg Config, eng *engine.Engine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(ppu.ScreenWidth*cfg.Scale, ppu.ScreenHeight*cfg.Scale)

	a := &App{
		cfg:  cfg,
		eng:  eng,
		tex:  ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight),
		held: make(map[ebiten.Key]bool),
	}
	a.audioCtx = audio.NewContext(cfg.SampleRate)
	a.stream = newSampleStream()
	eng.SetCallbacks(
		func([]byte) { a.frameReady = true },
		a.stream.push,
	)
	return a
}

// Update runs the engine until the next frame is rendered and applies
// input edges.
func (a *App) Update() error {
	if a.stopped {
		return ebiten.Termination
	}

	a.pollInput()

	if a.audioPlayer == nil {
		p, err := a.audioCtx.NewPlayer(a.stream)
		if err == nil {
			a.audioPlayer = p
			a.audioPlayer.Play()
		}
	}

	a.frameReady = false
	// Bound the tick loop so a stalled pipeline cannot wedge the host.
	const maxStepsPerFrame = 200000
	for i := 0; i < maxStepsPerFrame && !a.frameReady; i++ {
		if !a.eng.Tick() {
			a.stopped = true
			break
		}
	}
	return nil
}

func (a *App) pollInput() {
	for key, btn := range keymap {
		down := ebiten.IsKeyPressed(key)
		if down == a.held[key] {
			continue
		}
		a.held[key] = down
		if down {
			a.eng.Press(btn)
		} else {
			a.eng.Release(btn)
		}
	}
}

// Draw presents the current framebuffer.
func (a *App) Draw(screen *ebiten.Image) {
	a.tex.WritePixels(a.eng.Framebuffer())
	screen.DrawImage(a.tex, nil)
}

// Layout reports the native resolution; ebiten scales to the window.
func (a *App) Layout(int, int) (int, int) {
	return ppu.ScreenWidth, ppu.ScreenHeight
}
