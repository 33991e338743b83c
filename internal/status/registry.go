// Package status is the process-wide table of per-artifact install
// status records. It is the only mutable state shared between the
// orchestrator and its observers; all updates go through the Registry,
// which linearizes concurrent writes to the same identity.
package status

import (
	"sync"

	"github.com/google/uuid"
)

// Status is the observable state of one install.
type Status int

const (
	Unknown Status = iota
	Downloading
	ReadyToInstall
	Installing
	Installed
	Error
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Downloading:
		return "downloading"
	case ReadyToInstall:
		return "ready-to-install"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Error:
		return "error"
	}
	return "invalid"
}

// Action is an actionable handle attached to a record, e.g. "tap to
// cancel" while downloading or a confirmation the caller must surface.
// ID is a token observers can hand back to correlate the action.
type Action struct {
	ID       string
	Kind     string // "cancel" or "confirm"
	Identity string
}

// NewAction builds an action handle for the given identity.
func NewAction(kind, identity string) *Action {
	return &Action{ID: uuid.NewString(), Kind: kind, Identity: identity}
}

// Record is the mutable status entry for one artifact identity.
type Record struct {
	Identity    string
	PackageName string
	VersionCode int64
	Status      Status
	BytesRead   int64
	TotalBytes  int64
	ErrorText   string
	Action      *Action
}

// ProgressFraction returns download progress in [0,1], or 0 when the
// total is not yet known.
func (r Record) ProgressFraction() float64 {
	if r.TotalBytes <= 0 {
		return 0
	}
	return float64(r.BytesRead) / float64(r.TotalBytes)
}

// Listener observes record changes; removed is true when the record
// was deleted, in which case rec is its last snapshot.
type Listener func(rec Record, removed bool)

// Registry is the thread-safe identity to Record table.
type Registry struct {
	mu        sync.Mutex
	records   map[string]*Record
	listeners map[int]Listener
	nextSub   int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		records:   make(map[string]*Record),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener for record changes and returns a
// function that removes it. Listeners are invoked synchronously with a
// copy of the record, outside the registry lock.
func (r *Registry) Subscribe(fn Listener) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Upsert creates or updates the record for identity, setting its status
// and pending action. PackageName and VersionCode are only written on
// create so later status updates cannot clobber them.
func (r *Registry) Upsert(identity, packageName string, versionCode int64, st Status, action *Action) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	if !ok {
		rec = &Record{Identity: identity, PackageName: packageName, VersionCode: versionCode}
		r.records[identity] = rec
	}
	rec.Status = st
	rec.Action = action
	if st != Error {
		rec.ErrorText = ""
	}
	snap := *rec
	fns := r.listenerList()
	r.mu.Unlock()

	notify(fns, snap, false)
}

// Update sets the status and action of an existing record; it is a
// no-op if the identity has no record (e.g. it was cancelled).
func (r *Registry) Update(identity string, st Status, action *Action) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.Status = st
	rec.Action = action
	snap := *rec
	fns := r.listenerList()
	r.mu.Unlock()

	notify(fns, snap, false)
}

// UpdateProgress records download progress for identity. No-op when the
// record is absent.
func (r *Registry) UpdateProgress(identity string, total, read int64) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.TotalBytes = total
	rec.BytesRead = read
	snap := *rec
	fns := r.listenerList()
	r.mu.Unlock()

	notify(fns, snap, false)
}

// SetError marks the record as failed with the given message. No-op
// when the record is absent.
func (r *Registry) SetError(identity, message string) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.Status = Error
	rec.ErrorText = message
	rec.Action = nil
	snap := *rec
	fns := r.listenerList()
	r.mu.Unlock()

	notify(fns, snap, false)
}

// Remove deletes the record for identity. Safe to call when absent.
func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	rec, ok := r.records[identity]
	if !ok {
		r.mu.Unlock()
		return
	}
	snap := *rec
	delete(r.records, identity)
	fns := r.listenerList()
	r.mu.Unlock()

	notify(fns, snap, true)
}

// Get returns a copy of the record for identity.
func (r *Registry) Get(identity string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[identity]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// All returns a copy of every record.
func (r *Registry) All() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}

// GetByPackageName returns every record whose package name matches.
// Used to reconcile installs reported by the OS package registry.
func (r *Registry) GetByPackageName(packageName string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.PackageName == packageName {
			out = append(out, *rec)
		}
	}
	return out
}

func (r *Registry) listenerList() []Listener {
	fns := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []Listener, rec Record, removed bool) {
	for _, fn := range fns {
		fn(rec, removed)
	}
}
