// Command djengine is a headless/live demo harness for the engine core:
// it synthesizes a couple of test-tone "tracks" (this engine consumes
// prepared in-memory stem buffers, not compressed audio files — see the
// Non-goals), loads them onto two decks, and either renders a fixed
// number of callbacks and reports timing/levels, or plays live through
// the default audio output.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-audio/djengine/internal/buffer"
	"github.com/mesh-audio/djengine/internal/cmdring"
	"github.com/mesh-audio/djengine/internal/config"
	"github.com/mesh-audio/djengine/internal/driver"
	"github.com/mesh-audio/djengine/internal/engine"
	"github.com/mesh-audio/djengine/internal/key"
)

type cliFlags struct {
	Headless  bool
	Frames    int
	BlockSize int
	GlobalBPM float64
	Live      bool
	Portaudio bool
	EnvPath   string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.BoolVar(&f.Headless, "headless", true, "render without opening an output device")
	flag.IntVar(&f.Frames, "callbacks", 200, "number of callbacks to render in headless mode")
	flag.IntVar(&f.BlockSize, "block", 512, "frames per callback")
	flag.Float64Var(&f.GlobalBPM, "bpm", 0, "global BPM override (0 = use config default)")
	flag.BoolVar(&f.Live, "live", false, "play live through the default audio output (implies -headless=false)")
	flag.BoolVar(&f.Portaudio, "portaudio", false, "use the portaudio callback driver instead of the pull-style driver")
	flag.StringVar(&f.EnvPath, "env", "", "optional .env file for configuration overrides")
	flag.Parse()
	if f.Live {
		f.Headless = false
	}
	return f
}

func main() {
	f := parseFlags()

	cfg := config.Load(f.EnvPath)
	if f.GlobalBPM > 0 {
		cfg.GlobalBPM = f.GlobalBPM
	}

	eng := engine.New(cfg)
	eng.Prepare(maxInt(f.BlockSize, 2048))

	loadDemoTracks(eng)

	if f.Headless {
		runHeadless(eng, f.Frames, f.BlockSize)
		return
	}

	runLive(eng, f)
}

// loadDemoTracks synthesizes two short test-tone tracks and loads them
// onto decks 0 and 1, starts both playing, and routes deck 0 to the cue
// bus — enough to exercise the full render pipeline without a real
// decoder/loader.
func loadDemoTracks(eng *engine.Engine) {
	collector := eng.Collector()

	trackA := synthStems(128.0, 220.0, key.Key{Root: 9, Mode: key.Minor}) // 8A
	trackB := synthStems(128.0, 277.18, key.Key{Root: 0, Mode: key.Major}) // 8B relative

	bufA, err := buffer.New(trackA.stems, collector)
	if err != nil {
		log.Fatalf("demo track A: %v", err)
	}
	bufB, err := buffer.New(trackB.stems, collector)
	if err != nil {
		log.Fatalf("demo track B: %v", err)
	}

	ring := eng.Ring()
	push := func(cmd cmdring.Command) {
		cmd.CorrelationID = uuid.New()
		if err := ring.PushBackoff(cmd, 10*time.Millisecond); err != nil {
			log.Printf("command dropped: %v", err)
		}
	}

	push(cmdring.Command{Kind: cmdring.LoadTrack, Deck: 0, Buffer: bufA, Metadata: trackA.meta})
	push(cmdring.Command{Kind: cmdring.LoadTrack, Deck: 1, Buffer: bufB, Metadata: trackB.meta})
	push(cmdring.Command{Kind: cmdring.SetTransport, Deck: 0, TransportAction: cmdring.PlayToggle})
	push(cmdring.Command{Kind: cmdring.SetTransport, Deck: 1, TransportAction: cmdring.PlayToggle})
	push(cmdring.Command{Kind: cmdring.SetCueEnabled, Deck: 0, Bool: true})
}

type demoTrack struct {
	stems [buffer.NumStems]buffer.PlanarStereo
	meta  *buffer.Metadata
}

// synthStems builds a fixed-length sine-tone stand-in track: drums get a
// low click pulse on the beat, bass/vocals/other get distinct tones, so
// the four stems are audibly distinguishable when muted/soloed.
func synthStems(bpm float64, baseHz float64, k key.Key) demoTrack {
	const seconds = 8
	n := int64(seconds * buffer.SampleRate)
	spb := 60.0 * buffer.SampleRate / bpm

	var t demoTrack
	t.stems[buffer.Vocals] = tone(n, baseHz*2, 0.15)
	t.stems[buffer.Bass] = tone(n, baseHz/2, 0.25)
	t.stems[buffer.Other] = tone(n, baseHz*1.5, 0.1)
	t.stems[buffer.Drums] = clickTrack(n, spb, 0.3)
	t.meta = &buffer.Metadata{
		BPMOriginal:     bpm,
		FirstBeatSample: 0,
		Key:             k,
		LUFSIntegrated:  -16,
	}
	return t
}

func tone(n int64, hz float64, amp float64) buffer.PlanarStereo {
	out := make(buffer.PlanarStereo, n*2)
	for i := int64(0); i < n; i++ {
		v := float32(amp * math.Sin(2*math.Pi*hz*float64(i)/buffer.SampleRate))
		out[2*i] = v
		out[2*i+1] = v
	}
	return out
}

func clickTrack(n int64, samplesPerBeat float64, amp float64) buffer.PlanarStereo {
	out := make(buffer.PlanarStereo, n*2)
	clickLen := int64(200)
	for beat := 0; ; beat++ {
		start := int64(float64(beat) * samplesPerBeat)
		if start >= n {
			break
		}
		for i := int64(0); i < clickLen && start+i < n; i++ {
			decay := float32(1.0 - float64(i)/float64(clickLen))
			v := float32(amp) * decay
			out[2*(start+i)] = v
			out[2*(start+i)+1] = v
		}
	}
	return out
}

func runHeadless(eng *engine.Engine, callbacks int, block int) {
	start := time.Now()
	var peak float32
	for i := 0; i < callbacks; i++ {
		l, r, _, _ := eng.Process(block)
		for j := range l {
			if a := abs32(l[j]); a > peak {
				peak = a
			}
			if a := abs32(r[j]); a > peak {
				peak = a
			}
		}
	}
	elapsed := time.Since(start)
	totalFrames := callbacks * block
	fmt.Printf("headless: callbacks=%d block=%d frames=%d elapsed=%s peak=%.4f realtime_ratio=%.2fx\n",
		callbacks, block, totalFrames, elapsed.Truncate(time.Millisecond), peak,
		(float64(totalFrames)/buffer.SampleRate)/elapsed.Seconds())
}

func runLive(eng *engine.Engine, f cliFlags) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := eng.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("engine supervisor exited: %v", err)
		}
	}()

	if f.Portaudio {
		d, err := driver.NewPortAudioDriver(eng, f.BlockSize)
		if err != nil {
			log.Fatalf("portaudio driver: %v", err)
		}
		if err := d.Start(); err != nil {
			log.Fatalf("portaudio start: %v", err)
		}
		<-ctx.Done()
		if err := d.Stop(); err != nil {
			log.Printf("portaudio stop: %v", err)
		}
		return
	}

	d, err := driver.NewPullDriver(eng)
	if err != nil {
		log.Fatalf("pull driver: %v", err)
	}
	d.Start()
	<-ctx.Done()
	if err := d.Stop(); err != nil {
		log.Printf("pull driver stop: %v", err)
	}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
