package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"github.com/gobemu/gobemula/gobemula"
	"github.com/gobemu/gobemula/gobemula/backend/sdl2"
	"github.com/gobemu/gobemula/gobemula/debugger"
	"github.com/gobemu/gobemula/gobemula/render"
)

func main() {
	app := cli.NewApp()
	app.Name = "gobemula"
	app.Description = "A Game Boy / Game Boy Color emulator"
	app.Usage = "gobemula [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "bootstrap",
			Usage: "Path to a bootstrap ROM (256 bytes DMG, 2048 CGB)",
		},
		cli.StringFlag{
			Name:  "battery",
			Usage: "Path of the battery save file (loaded on start, written while running)",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Video backend: terminal or sdl2",
			Value: "terminal",
		},
		cli.IntFlag{
			Name:  "scale",
			Usage: "Window scale factor for the sdl2 backend",
			Value: 2,
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "debugger",
			Usage: "Attach the interactive debugger shell",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func runEmulator(c *cli.Context) error {
	setupLogging(c.String("log-level"))

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
		romPath = c.Args().Get(0)
	}

	emu, err := gobemula.NewWithFile(romPath)
	if err != nil {
		return err
	}

	if path := c.String("bootstrap"); path != "" {
		boot, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading bootstrap ROM: %w", err)
		}
		emu.LoadBootstrap(boot)
	}

	if path := c.String("battery"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			emu.LoadBattery(data)
			slog.Info("Battery save restored", "path", path, "size", len(data))
		}
		emu.SetBatterySaveCallback(func(data []byte) {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				slog.Error("Battery save failed", "path", path, "error", err)
			}
		})
	}

	if c.Bool("debugger") {
		emu.AttachDebugger(debugger.New())
	}

	if c.Bool("headless") {
		frames := c.Int("frames")
		if frames <= 0 {
			return errors.New("headless mode requires --frames with a positive value")
		}
		render.RunHeadless(emu, frames)
		return nil
	}

	switch c.String("backend") {
	case "terminal":
		renderer, err := render.NewTerminalRenderer(emu)
		if err != nil {
			return err
		}
		return renderer.Run()
	case "sdl2":
		b, err := sdl2.New(emu, c.Int("scale"))
		if err != nil {
			return err
		}
		return b.Run()
	default:
		return fmt.Errorf("unknown backend: %s", c.String("backend"))
	}
}
