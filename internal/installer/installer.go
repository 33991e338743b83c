// Package installer is the boundary to the platform's native package
// install mechanism. The orchestrator hands it a downloaded file and
// observes the outcome through the event Bus.
package installer

import (
	"sync"

	"github.com/open-edge-platform/install-orchestrator/internal/artifact"
	"github.com/open-edge-platform/install-orchestrator/internal/status"
)

// EventKind discriminates installer lifecycle events.
type EventKind int

const (
	InstallStarted EventKind = iota
	InstallComplete
	// InstallInterrupted is terminal; an empty ErrorText means a silent
	// cancel (e.g. user-dismissed), a non-empty one a surfaced failure.
	InstallInterrupted
	// UserInteractionRequired carries an Action the caller must surface.
	// It may recur before a terminal event.
	UserInteractionRequired
)

func (k EventKind) String() string {
	switch k {
	case InstallStarted:
		return "install-started"
	case InstallComplete:
		return "install-complete"
	case InstallInterrupted:
		return "install-interrupted"
	case UserInteractionRequired:
		return "user-interaction-required"
	}
	return "invalid"
}

// Event is one installer lifecycle signal, keyed by the artifact's
// download identity.
type Event struct {
	Identity  string
	Kind      EventKind
	ErrorText string         // set on InstallInterrupted failures
	Action    *status.Action // set on UserInteractionRequired
}

// Installer installs a downloaded artifact file. Implementations emit
// lifecycle events on the Bus they were constructed with; Install never
// blocks on the install itself.
type Installer interface {
	Install(localPath, identity string, req *artifact.Request)
}

// PackageRegistry is the "who installed this" bookkeeping kept by the
// host platform. SetInstaller is called once per completed install.
type PackageRegistry interface {
	SetInstaller(packageName, identity string)
}

// Bus fans installer events out to per-identity subscribers.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[int]func(Event)
	nextSub int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(Event))}
}

// Subscribe registers fn for events scoped to identity and returns a
// function that unregisters it.
func (b *Bus) Subscribe(identity string, fn func(Event)) func() {
	b.mu.Lock()
	if b.subs[identity] == nil {
		b.subs[identity] = make(map[int]func(Event))
	}
	id := b.nextSub
	b.nextSub++
	b.subs[identity][id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if m := b.subs[identity]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, identity)
			}
		}
		b.mu.Unlock()
	}
}

// Emit delivers ev to every subscriber of its identity.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs[ev.Identity]))
	for _, fn := range b.subs[ev.Identity] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
