package driver

import (
	"encoding/binary"
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/mesh-audio/djengine/internal/engine"
)

// pullBlockFrames is how many frames engineStream pulls from the engine
// per internal Process call, independent of how much the player asks
// for per Read (grounded in apuStream's own "per-read cap" pattern).
const pullBlockFrames = 1024

// engineStream implements io.Reader by pulling interleaved stereo
// frames from the engine conductor and converting them to 16-bit
// little-endian PCM, the format ebiten/oto's audio.Player expects.
type engineStream struct {
	eng *engine.Engine

	pending []byte // bytes pulled but not yet returned to the caller
}

// newEngineStream constructs a stream pulling from eng, which must
// already have had Prepare(>=pullBlockFrames) called.
func newEngineStream(eng *engine.Engine) *engineStream {
	return &engineStream{eng: eng}
}

// Read fills p with 16-bit stereo PCM pulled from the engine, blocking
// (via repeated small Process calls) only as long as it takes to render
// audio — there is no I/O wait here, unlike a hardware-callback driver,
// since PullStyle playback is the consumer pacing itself against the
// engine's own render cost.
func (s *engineStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			s.fill()
		}
		copied := copy(p[n:], s.pending)
		s.pending = s.pending[copied:]
		n += copied
	}
	return n, nil
}

// fill renders one engine block and appends its PCM16 bytes to pending.
func (s *engineStream) fill() {
	l, r, _, _ := s.eng.Process(pullBlockFrames)
	buf := make([]byte, len(l)*4)
	for i := range l {
		li := clampPCM16(l[i])
		ri := clampPCM16(r[i])
		binary.LittleEndian.PutUint16(buf[4*i:], uint16(li))
		binary.LittleEndian.PutUint16(buf[4*i+2:], uint16(ri))
	}
	s.pending = buf
}

func clampPCM16(x float32) int16 {
	v := x * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// PullDriver drives the engine through ebiten/oto's pull-style
// io.Reader player, the cross-platform output path cmd/djengine uses in
// live mode unless -portaudio is given.
type PullDriver struct {
	ctx    *audio.Context
	player *audio.Player
	src    *engineStream
}

// NewPullDriver constructs a player pulling from eng. Prepare must
// already have been called on eng with at least pullBlockFrames.
func NewPullDriver(eng *engine.Engine) (*PullDriver, error) {
	ctx := audio.NewContext(48000)
	src := newEngineStream(eng)
	player, err := ctx.NewPlayer(io.Reader(src))
	if err != nil {
		return nil, err
	}
	return &PullDriver{ctx: ctx, player: player, src: src}, nil
}

// Start begins playback.
func (d *PullDriver) Start() { d.player.Play() }

// Stop halts playback and releases the player.
func (d *PullDriver) Stop() error {
	return d.player.Close()
}
