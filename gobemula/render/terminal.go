// Package render presents frames in a terminal using half-block cells:
// each character cell carries two vertically stacked pixels.
package render

import (
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/gobemu/gobemula/gobemula"
	"github.com/gobemu/gobemula/gobemula/memory"
	"github.com/gobemu/gobemula/gobemula/video"
)

const frameTime = time.Second / 60

// keyMap binds tcell keys to joypad buttons.
var keyMap = map[tcell.Key]memory.JoypadKey{
	tcell.KeyRight: memory.JoypadRight,
	tcell.KeyLeft:  memory.JoypadLeft,
	tcell.KeyUp:    memory.JoypadUp,
	tcell.KeyDown:  memory.JoypadDown,
	tcell.KeyEnter: memory.JoypadStart,
	tcell.KeyTab:   memory.JoypadSelect,
}

var runeMap = map[rune]memory.JoypadKey{
	'z': memory.JoypadA,
	'x': memory.JoypadB,
}

// TerminalRenderer runs the frame loop against a tcell screen.
type TerminalRenderer struct {
	emu    *gobemula.Emulator
	screen tcell.Screen

	// keys held down, released when no repeat arrives for a while
	held map[memory.JoypadKey]time.Time
}

// NewTerminalRenderer initializes the screen.
func NewTerminalRenderer(emu *gobemula.Emulator) (*TerminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()

	return &TerminalRenderer{
		emu:    emu,
		screen: screen,
		held:   map[memory.JoypadKey]time.Time{},
	}, nil
}

// Run drives the emulator until the user quits with Esc or Ctrl-C. The
// pacing sleep targets ~16.67 ms per frame.
func (r *TerminalRenderer) Run() error {
	defer r.screen.Fini()
	defer r.emu.Shutdown()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go r.screen.ChannelEvents(events, quit)

	last := time.Now()
	for {
		select {
		case ev := <-events:
			if r.handleEvent(ev) {
				close(quit)
				return nil
			}
			continue
		default:
		}

		r.releaseStaleKeys()
		r.emu.RunUntilFrame()
		r.drawFrame()

		elapsed := time.Since(last)
		if elapsed < frameTime {
			time.Sleep(frameTime - elapsed)
		}
		last = time.Now()
	}
}

// handleEvent processes one input event; true means quit.
func (r *TerminalRenderer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return true
		}
		if key, ok := keyMap[ev.Key()]; ok {
			r.press(key)
		} else if key, ok := runeMap[ev.Rune()]; ok {
			r.press(key)
		}
	case *tcell.EventResize:
		r.screen.Sync()
	}
	return false
}

func (r *TerminalRenderer) press(key memory.JoypadKey) {
	if _, holding := r.held[key]; !holding {
		r.emu.HandleKeyPress(key)
	}
	r.held[key] = time.Now()
}

// releaseStaleKeys emulates key-up: terminals only deliver key-down, so a
// key with no repeat for a few frames is treated as released.
func (r *TerminalRenderer) releaseStaleKeys() {
	now := time.Now()
	for key, lastSeen := range r.held {
		if now.Sub(lastSeen) > 150*time.Millisecond {
			r.emu.HandleKeyRelease(key)
			delete(r.held, key)
		}
	}
}

// drawFrame paints the 160x144 buffer as 160x72 half-block cells.
func (r *TerminalRenderer) drawFrame() {
	fb := r.emu.GetCurrentFrame()

	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			upper := toTcellColor(fb.GetPixel(x, y))
			lower := toTcellColor(fb.GetPixel(x, y+1))
			style := tcell.StyleDefault.Foreground(upper).Background(lower)
			r.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	r.screen.Show()
}

func toTcellColor(c video.GBColor) tcell.Color {
	return tcell.NewRGBColor(
		int32(c>>24&0xFF),
		int32(c>>16&0xFF),
		int32(c>>8&0xFF))
}

// RunHeadless runs a fixed number of frames with no presenter attached.
func RunHeadless(emu *gobemula.Emulator, frames int) {
	start := time.Now()
	for i := 0; i < frames; i++ {
		emu.RunUntilFrame()
	}
	emu.Shutdown()
	slog.Info("Headless run finished",
		"frames", frames,
		"instructions", emu.GetInstructionCount(),
		"elapsed", time.Since(start))
}
