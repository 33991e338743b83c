// Package download abstracts the transfer engine behind the Gateway
// interface: queue a download by identity, cancel by identity, and a
// per-identity stream of lifecycle events.
package download

// EventKind discriminates download lifecycle events.
type EventKind int

const (
	// Started is delivered once when the transfer begins.
	Started EventKind = iota
	// Progress carries BytesRead/TotalBytes updates.
	Progress
	// Completed is delivered once with the local file path; terminal.
	Completed
	// Interrupted means the transfer failed or was cancelled; terminal.
	Interrupted
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Progress:
		return "progress"
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	}
	return "invalid"
}

// Event is one download lifecycle signal, keyed by identity.
type Event struct {
	Identity   string
	Kind       EventKind
	BytesRead  int64
	TotalBytes int64
	LocalPath  string // set on Completed
}

// Gateway is the boundary to the transfer engine. For a given identity,
// a transfer that begins emits Started, then any number of Progress
// events, then exactly one of Completed or Interrupted. A transfer that
// is cancelled while still queued, or that fails before a response
// arrives, emits a bare Interrupted with no prior Started. Cancel is a
// no-op when nothing is queued or active.
type Gateway interface {
	Queue(identity string)
	Cancel(identity string)
	IsQueuedOrActive(identity string) bool

	// Subscribe registers fn for events scoped to identity and returns
	// a function that unregisters it. Events for one identity are
	// delivered sequentially.
	Subscribe(identity string, fn func(Event)) func()
}
