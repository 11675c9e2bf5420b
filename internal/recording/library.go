package recording

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Library holds finished clips in memory
type Library struct {
	clips *xsync.MapOf[ClipID, *Clip]
}

// NewLibrary creates an empty library
func NewLibrary() *Library {
	return &Library{
		clips: xsync.NewMapOf[ClipID, *Clip](),
	}
}

// Add stores a clip under its ID
func (l *Library) Add(clip *Clip) {
	l.clips.Store(clip.ID, clip)
}

// Get returns the clip with the given ID
func (l *Library) Get(id ClipID) (*Clip, bool) {
	return l.clips.Load(id)
}

// Delete removes a clip. It returns false if the clip did not exist.
func (l *Library) Delete(id ClipID) bool {
	_, ok := l.clips.LoadAndDelete(id)
	return ok
}

// Len returns the number of stored clips
func (l *Library) Len() int {
	return l.clips.Size()
}

// List returns every clip, oldest first
func (l *Library) List() []*Clip {
	clips := make([]*Clip, 0, l.clips.Size())
	l.clips.Range(func(_ ClipID, clip *Clip) bool {
		clips = append(clips, clip)
		return true
	})
	sort.Slice(clips, func(i, j int) bool {
		return clips[i].CreatedAt.Before(clips[j].CreatedAt)
	})
	return clips
}
