package dashboard

import (
	"bytes"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the content of the image and record panes for one selected
// light-curve row. A published Snapshot is never modified.
type Snapshot struct {
	Index   int
	Image   image.Image
	Text    string
	Version uint64
	Updated time.Time

	pngOnce sync.Once
	png     []byte
	pngErr  error
}

// PNG returns the image pane encoded as PNG, encoding on first use.
func (s *Snapshot) PNG() ([]byte, error) {
	s.pngOnce.Do(func() {
		var buf bytes.Buffer
		s.pngErr = png.Encode(&buf, s.Image)
		s.png = buf.Bytes()
	})
	return s.png, s.pngErr
}

// historyLen is how many of the latest snapshots stay addressable by
// version.
const historyLen = 16

// View holds the panes currently on display. Both panes change together:
// readers see either the previous snapshot or the next, never a mix.
type View struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	version uint64
	recent  [historyLen]*Snapshot
}

// Publish replaces the displayed panes and returns the stored snapshot
// with its version assigned.
func (v *View) Publish(index int, img image.Image, text string, at time.Time) *Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version++
	s := &Snapshot{
		Index:   index,
		Image:   img,
		Text:    text,
		Version: v.version,
		Updated: at,
	}
	v.recent[s.Version%historyLen] = s
	v.current.Store(s)
	return s
}

// Current returns the displayed snapshot, or nil before the first Publish.
func (v *View) Current() *Snapshot {
	return v.current.Load()
}

// At returns the snapshot published as version, if it is still among the
// latest historyLen.
func (v *View) At(version uint64) (*Snapshot, bool) {
	v.mu.Lock()
	s := v.recent[version%historyLen]
	v.mu.Unlock()
	if s == nil || s.Version != version {
		return nil, false
	}
	return s, true
}
