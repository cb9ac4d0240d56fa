// Package arena moves a room into the shared arena scene once the local peer
// holds authority.
package arena

import (
	"errors"

	"github.com/BioHazard786/Questroom/cli/internal/transport"
	"github.com/rs/zerolog/log"
)

// DefaultScene is loaded when no arena is configured.
const DefaultScene = "arena"

var ErrNotAuthority = errors.New("local peer is not the room authority")

// SceneSync applies a scene change to every member of the room.
type SceneSync interface {
	LoadSharedScene(name string) error
}

// Loader issues at most one shared-scene directive per room.
type Loader struct {
	localID string
	scene   string
	sync    SceneSync

	pendingRoom string
	loads       int
}

// NewLoader returns a Loader for scene. An empty scene selects DefaultScene.
func NewLoader(sync SceneSync, scene string) *Loader {
	if scene == "" {
		scene = DefaultScene
	}
	return &Loader{sync: sync, scene: scene}
}

// SetLocalPeer records the id the service assigned to this process.
func (l *Loader) SetLocalPeer(id string) {
	l.localID = id
}

// Scene returns the arena scene name.
func (l *Loader) Scene() string {
	return l.scene
}

// OnMembershipChanged loads the arena if the local peer is authority and the
// room is not already there.
func (l *Loader) OnMembershipChanged(room transport.Room) error {
	if l.localID == "" || room.Authority != l.localID {
		log.Warn().
			Str("room", room.ID).
			Str("authority", room.Authority).
			Msg("not authority, ignoring arena load")
		return ErrNotAuthority
	}
	if room.Scene == l.scene || l.pendingRoom == room.ID {
		return nil
	}

	if err := l.sync.LoadSharedScene(l.scene); err != nil {
		return err
	}
	l.pendingRoom = room.ID
	l.loads++
	log.Info().Str("room", room.ID).Str("scene", l.scene).Msg("arena load issued")
	return nil
}

// Reset clears the pending directive, used when leaving a room.
func (l *Loader) Reset() {
	l.pendingRoom = ""
}

// Loads reports how many directives have been issued.
func (l *Loader) Loads() int {
	return l.loads
}
