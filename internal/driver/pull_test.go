package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-audio/djengine/internal/cmdring"
	"github.com/mesh-audio/djengine/internal/config"
	"github.com/mesh-audio/djengine/internal/engine"
)

func TestClampPCM16Bounds(t *testing.T) {
	assert.Equal(t, int16(32767), clampPCM16(2.0))
	assert.Equal(t, int16(-32768), clampPCM16(-2.0))
	assert.Equal(t, int16(0), clampPCM16(0))
}

func TestEngineStreamReadProducesInterleavedPCM16(t *testing.T) {
	eng := engine.New(config.Default())
	eng.Prepare(4096)
	eng.Ring().TryPush(cmdring.Command{Kind: cmdring.SetGlobalBPM, Deck: -1, GlobalBPM: 120})

	s := newEngineStream(eng)
	// Ask for less than one full internal block to exercise the "pending"
	// carry-over path across multiple Read calls.
	buf := make([]byte, 100)
	n, err := s.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 100, n)

	buf2 := make([]byte, 50)
	n2, err := s.Read(buf2)
	assert.NoError(t, err)
	assert.Equal(t, 50, n2)
}

func TestEngineStreamReadHandlesEmptyRequest(t *testing.T) {
	eng := engine.New(config.Default())
	eng.Prepare(4096)
	s := newEngineStream(eng)
	n, err := s.Read(nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
