// Package driver adapts the engine conductor to concrete audio output
// backends. The engine core itself never touches a driver API directly
// (spec §6: "driver-owned output callback"); these adapters are the
// boundary.
package driver

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/mesh-audio/djengine/internal/engine"
)

// PortAudioDriver drives the engine from a real-time callback-based
// portaudio stream, the "live mode" output path (grounded in the
// gordonklaus/portaudio callback-stream pattern the example pack uses
// for real-time synthesis engines).
type PortAudioDriver struct {
	eng    *engine.Engine
	stream *portaudio.Stream
}

// NewPortAudioDriver opens the default output device at the engine's
// fixed sample rate with the given per-callback frame count. Prepare
// must already have been called on eng with at least framesPerBuffer.
func NewPortAudioDriver(eng *engine.Engine, framesPerBuffer int) (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("driver: portaudio init: %w", err)
	}
	d := &PortAudioDriver{eng: eng}
	stream, err := portaudio.OpenDefaultStream(
		0,                 // input channels
		2,                 // output channels (stereo)
		float64(48000),    // sample rate; matches buffer.SampleRate
		framesPerBuffer,
		d.callback,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("driver: open stream: %w", err)
	}
	d.stream = stream
	return d, nil
}

// callback is the real-time audio thread entry point. It performs
// exactly one Engine.ProcessInto call and deinterleaves straight into
// out; it allocates nothing (spec §4.8/§8 property 1: the callback
// never allocates).
func (d *PortAudioDriver) callback(out [][]float32) {
	n := d.eng.ProcessInto(len(out[0]))
	d.eng.DeinterleaveMasterInto(out[0][:n], out[1][:n])
	for i := n; i < len(out[0]); i++ {
		out[0][i] = 0
		out[1][i] = 0
	}
}

// Start begins the real-time callback.
func (d *PortAudioDriver) Start() error {
	return d.stream.Start()
}

// Stop halts the stream, closes it, and terminates the portaudio host.
// Safe to call once after Start; not called from the audio thread.
func (d *PortAudioDriver) Stop() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return err
	}
	if err := d.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
