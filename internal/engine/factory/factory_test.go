package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eist-radio/streamd/internal/engine/enginetest"
)

func TestNew_Fake(t *testing.T) {
	eng, err := New("fake", nil)
	require.NoError(t, err)
	defer eng.Close()

	_, ok := eng.(*enginetest.Fake)
	assert.True(t, ok)
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New("vlc", nil)
	assert.ErrorContains(t, err, "unsupported engine type")
}

func TestNew_BadSettings(t *testing.T) {
	_, err := New("mpv", map[string]any{"cache_secs": "not a number"})
	assert.ErrorContains(t, err, "decode mpv settings")
}
