//go:build sdl2

// Package sdl2 presents frames in an SDL2 window and feeds APU samples to
// an SDL2 audio device. Building it requires the SDL2 development
// libraries; default builds get the stub instead (build tag sdl2).
package sdl2

import (
	"log/slog"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/gobemu/gobemula/gobemula"
	"github.com/gobemu/gobemula/gobemula/audio"
	"github.com/gobemu/gobemula/gobemula/memory"
	"github.com/gobemu/gobemula/gobemula/video"
)

var keyMap = map[sdl.Scancode]memory.JoypadKey{
	sdl.SCANCODE_RIGHT:  memory.JoypadRight,
	sdl.SCANCODE_LEFT:   memory.JoypadLeft,
	sdl.SCANCODE_UP:     memory.JoypadUp,
	sdl.SCANCODE_DOWN:   memory.JoypadDown,
	sdl.SCANCODE_Z:      memory.JoypadA,
	sdl.SCANCODE_X:      memory.JoypadB,
	sdl.SCANCODE_LSHIFT: memory.JoypadSelect,
	sdl.SCANCODE_LCTRL:  memory.JoypadStart,
}

// Backend owns the SDL2 window, texture and audio device.
type Backend struct {
	emu      *gobemula.Emulator
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	audioDev sdl.AudioDeviceID
	scale    int
}

// New opens the window and audio device.
func New(emu *gobemula.Emulator, scale int) (*Backend, error) {
	if scale <= 0 {
		scale = 2
	}
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, err
	}

	window, err := sdl.CreateWindow("gobemula",
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(video.FramebufferWidth*scale), int32(video.FramebufferHeight*scale),
		sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, err
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		return nil, err
	}

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGBA8888, sdl.TEXTUREACCESS_STREAMING,
		video.FramebufferWidth, video.FramebufferHeight)
	if err != nil {
		return nil, err
	}

	spec := sdl.AudioSpec{
		Freq:     audio.DefaultSampleRate,
		Format:   sdl.AUDIO_F32SYS,
		Channels: 2,
		Samples:  1024,
	}
	audioDev, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		// keep running silently when no audio device is available
		slog.Warn("Audio device unavailable", "error", err)
	} else {
		sdl.PauseAudioDevice(audioDev, false)
	}

	return &Backend{
		emu:      emu,
		window:   window,
		renderer: renderer,
		texture:  texture,
		audioDev: audioDev,
		scale:    scale,
	}, nil
}

// Run drives the emulator until the window closes.
func (b *Backend) Run() error {
	defer b.cleanup()
	defer b.emu.Shutdown()

	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				return nil
			case *sdl.KeyboardEvent:
				if ev.Keysym.Scancode == sdl.SCANCODE_ESCAPE {
					return nil
				}
				key, ok := keyMap[ev.Keysym.Scancode]
				if !ok {
					break
				}
				if ev.Type == sdl.KEYDOWN && ev.Repeat == 0 {
					b.emu.HandleKeyPress(key)
				} else if ev.Type == sdl.KEYUP {
					b.emu.HandleKeyRelease(key)
				}
			}
		}

		b.emu.RunUntilFrame()
		b.presentFrame()
		b.queueAudio()
		// vsync paces the loop to the display rate
	}
}

func (b *Backend) presentFrame() {
	pixels := b.emu.GetCurrentFrame().ToSlice()
	b.texture.UpdateRGBA(nil, pixels, video.FramebufferWidth)
	b.renderer.Clear()
	b.renderer.Copy(b.texture, nil, nil)
	b.renderer.Present()
}

func (b *Backend) queueAudio() {
	if b.audioDev == 0 {
		return
	}
	samples := b.emu.GetMMU().APU.Samples()
	if len(samples) == 0 {
		return
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*4)
	if err := sdl.QueueAudio(b.audioDev, buf); err != nil {
		slog.Warn("Audio queue failed", "error", err)
	}
}

func (b *Backend) cleanup() {
	if b.audioDev != 0 {
		sdl.CloseAudioDevice(b.audioDev)
	}
	b.texture.Destroy()
	b.renderer.Destroy()
	b.window.Destroy()
	sdl.Quit()
}
