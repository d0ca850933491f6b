package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_AtKeepsRecentVersions(t *testing.T) {
	var v View
	_, ok := v.At(1)
	assert.False(t, ok, "nothing published")

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < historyLen+3; i++ {
		v.Publish(i, nil, "row", at)
	}
	latest := uint64(historyLen + 3)
	assert.Equal(t, latest, v.Current().Version)

	s, ok := v.At(latest)
	require.True(t, ok)
	assert.Same(t, v.Current(), s)

	oldest := latest - historyLen + 1
	s, ok = v.At(oldest)
	require.True(t, ok)
	assert.Equal(t, int(oldest-1), s.Index)

	_, ok = v.At(oldest - 1)
	assert.False(t, ok, "evicted")
	_, ok = v.At(latest + 1)
	assert.False(t, ok, "not yet published")
}
