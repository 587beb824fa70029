// Command fantasyconsole loads a program image and runs the core,
// either headless for a fixed number of frames or under the ebiten
// window shell. The CPU slot is filled with the free-running stepper;
// a real decoder is supplied by embedding the engine elsewhere.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/tmby-console/core/internal/cpu"
	"github.com/tmby-console/core/internal/engine"
	"github.com/tmby-console/core/internal/hostio"
	"github.com/tmby-console/core/internal/rom"
	"github.com/tmby-console/core/internal/ui"
)

func main() {
	romPath := flag.String("rom", "", "path to program image (required)")
	sramPath := flag.String("sram", "", "path to battery SRAM file (default <rom>.sav)")
	headless := flag.Bool("headless", false, "run without a window")
	frames := flag.Int("frames", 60, "frames to run in headless mode")
	scale := flag.Int("scale", 3, "window scale factor")
	rate := flag.Int("rate", 44100, "audio sample rate")
	flag.Parse()

	if *romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fantasyconsole -rom <image> [-headless] [-frames N]")
		os.Exit(2)
	}

	image, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	header, err := rom.Load(image)
	if err != nil {
		log.Fatalf("load rom: %v", err)
	}
	log.Printf("loaded %q v%s by %s (WRAM=%d SRAM=%d XRAM=%d)",
		header.Name, header.Version, header.Author,
		header.WRAMSize, header.SRAMSize, header.XRAMSize)

	eng, err := engine.New(header, image, cpu.FreeRunner{}, engine.Config{SampleRate: *rate})
	if err != nil {
		log.Fatalf("construct engine: %v", err)
	}

	savPath := *sramPath
	if savPath == "" {
		savPath = *romPath + ".sav"
	}
	if data, found, err := hostio.LoadSRAM(savPath); err != nil {
		log.Printf("load sram: %v", err)
	} else if found {
		eng.Bus().LoadSRAM(data)
	}
	defer func() {
		if header.SRAMSize == 0 {
			return
		}
		if ok, err := hostio.SaveSRAM(savPath, eng.Bus().SRAM()); !ok {
			log.Printf("save sram: %v", err)
		}
	}()

	if *headless {
		eng.RunFrames(*frames)
		log.Printf("ran %d frames headless", *frames)
		return
	}

	app := ui.NewApp(ui.Config{Scale: *scale, SampleRate: *rate, Title: "Fantasy Console - [" + header.Name + "]"}, eng)
	if err := ebiten.RunGame(app); err != nil && err != ebiten.Termination {
		log.Fatalf("run: %v", err)
	}
}
