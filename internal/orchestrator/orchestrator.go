// Package orchestrator drives the per-artifact install state machine:
// request intake, cache reconciliation, download, expansion-file
// pre-fetch, install, and the event plumbing between them. Events for
// one identity are handled strictly in order on a dedicated goroutine;
// distinct identities proceed in parallel.
package orchestrator

import (
	"fmt"
	"os"
	"sync"

	"github.com/open-edge-platform/install-orchestrator/internal/artifact"
	"github.com/open-edge-platform/install-orchestrator/internal/cache"
	"github.com/open-edge-platform/install-orchestrator/internal/download"
	"github.com/open-edge-platform/install-orchestrator/internal/expansion"
	"github.com/open-edge-platform/install-orchestrator/internal/installer"
	"github.com/open-edge-platform/install-orchestrator/internal/status"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// Orchestrator coordinates the content store, download gateway,
// expansion coordinator, installer and status registry for every
// in-flight install.
type Orchestrator struct {
	store        *cache.Store
	gateway      download.Gateway
	registry     *status.Registry
	installerBus *installer.Bus
	inst         installer.Installer
	pkgRegistry  installer.PackageRegistry // optional
	expansions   *expansion.Coordinator

	mu      sync.Mutex
	flights map[string]*flight
}

// event merges the two input streams of a flight.
type event struct {
	dl *download.Event
	in *installer.Event
}

// flight is the single logical control point for one identity. Its
// goroutine consumes events in arrival order until a terminal
// transition, then releases every subscription it holds.
type flight struct {
	identity string
	req      *artifact.Request // nil for recovered flights

	events chan event
	done   chan struct{}

	finished      bool // guarded by Orchestrator.mu
	unsubDownload func()
	unsubInstall  func()
}

// New creates an Orchestrator. pkgRegistry may be nil when the host
// keeps no installed-by bookkeeping.
func New(store *cache.Store, gateway download.Gateway, registry *status.Registry,
	bus *installer.Bus, inst installer.Installer, pkgRegistry installer.PackageRegistry) *Orchestrator {
	return &Orchestrator{
		store:        store,
		gateway:      gateway,
		registry:     registry,
		installerBus: bus,
		inst:         inst,
		pkgRegistry:  pkgRegistry,
		expansions:   expansion.New(gateway, registry),
		flights:      make(map[string]*flight),
	}
}

// Registry exposes the status registry for observers.
func (o *Orchestrator) Registry() *status.Registry { return o.registry }

// RequestInstall is the public intake. It is idempotent under
// at-least-once redelivery of the same request: a duplicate while the
// download is queued or active is a no-op, and a duplicate for an
// identity whose download is gone and whose file is not complete on
// disk abandons the request (the record is removed, not re-queued).
func (o *Orchestrator) RequestInstall(req *artifact.Request) error {
	log := logger.Logger()

	if req == nil {
		return fmt.Errorf("nil install request")
	}
	if err := req.Validate(); err != nil {
		log.Warnf("dropping malformed install request: %v", err)
		return err
	}
	identity := req.Identity

	o.mu.Lock()
	_, inFlight := o.flights[identity]
	o.mu.Unlock()
	if inFlight {
		log.Debugf("%s already in flight, ignoring duplicate request", identity)
		return nil
	}

	artifactPath := o.store.ResolvePath(identity)
	_, hasRecord := o.registry.Get(identity)
	if hasRecord && !o.gateway.IsQueuedOrActive(identity) {
		if !o.store.IsValid(artifactPath, req.Size, req.SHA256) {
			// finished or died while we were gone and the file never
			// made it: abandon rather than silently retry forever
			log.Infof("%s redelivered with no active download and no complete file, abandoning", identity)
			o.registry.Remove(identity)
			return nil
		}
	}

	log.Infof("install requested: %s %d from %s", req.PackageName, req.VersionCode, identity)
	o.registry.Upsert(identity, req.PackageName, req.VersionCode, status.Unknown, nil)

	f := o.startFlight(identity, req)

	// queue expansion files first so they are hopefully in place before
	// the artifact lands; ordering is best-effort only
	o.expansions.Fetch(req, artifact.RoleMain)
	o.expansions.Fetch(req, artifact.RolePatch)

	size := o.store.SizeOf(artifactPath)
	switch {
	case !o.store.Exists(artifactPath) || size < req.Size:
		log.Debugf("downloading %s to %s", identity, artifactPath)
		o.gateway.Queue(identity)
	case o.store.IsValid(artifactPath, req.Size, req.SHA256):
		log.Debugf("%s already cached at %s, skipping download", identity, artifactPath)
		f.push(event{dl: &download.Event{Identity: identity, Kind: download.Started, TotalBytes: req.Size}})
		f.push(event{dl: &download.Event{Identity: identity, Kind: download.Completed, LocalPath: artifactPath}})
	default:
		log.Debugf("cached %s failed validation, deleting and downloading again", artifactPath)
		if err := os.Remove(artifactPath); err != nil && !os.IsNotExist(err) {
			log.Warnf("deleting invalid cache file %s: %v", artifactPath, err)
		}
		o.gateway.Queue(identity)
	}
	return nil
}

// Cancel aborts the artifact download and any pending expansion-file
// downloads for identity, then removes its status record. Safe to call
// when nothing is in flight.
func (o *Orchestrator) Cancel(identity string) {
	logger.Logger().Infof("cancelling %s", identity)
	o.gateway.Cancel(identity)

	o.mu.Lock()
	f := o.flights[identity]
	o.mu.Unlock()
	if f != nil {
		if f.req != nil {
			o.expansions.Cancel(f.req)
		}
		o.finishFlight(f)
	}
	o.registry.Remove(identity)
}

// PackageAdded reconciles installs that bypassed the orchestrator's own
// install-complete event: every record for the package name is marked
// Installed.
func (o *Orchestrator) PackageAdded(packageName string) {
	log := logger.Logger()
	for _, rec := range o.registry.GetByPackageName(packageName) {
		log.Infof("package %s reported installed, reconciling %s", packageName, rec.Identity)
		o.registry.Update(rec.Identity, status.Installed, nil)

		o.mu.Lock()
		f := o.flights[rec.Identity]
		o.mu.Unlock()
		if f != nil {
			o.finishFlight(f)
		}
	}
}

// startFlight creates the per-identity control loop and subscribes it
// to download events before anything is queued, so no event is missed.
func (o *Orchestrator) startFlight(identity string, req *artifact.Request) *flight {
	f := &flight{
		identity: identity,
		req:      req,
		events:   make(chan event, 16),
		done:     make(chan struct{}),
	}
	o.mu.Lock()
	o.flights[identity] = f
	f.unsubDownload = o.gateway.Subscribe(identity, func(ev download.Event) {
		f.push(event{dl: &ev})
	})
	o.mu.Unlock()

	go o.runFlight(f)
	return f
}

// push delivers an event to the flight unless it already finished.
func (f *flight) push(ev event) {
	select {
	case f.events <- ev:
	case <-f.done:
	}
}

func (o *Orchestrator) runFlight(f *flight) {
	for {
		select {
		case ev := <-f.events:
			var terminal bool
			switch {
			case ev.dl != nil:
				terminal = o.handleDownload(f, *ev.dl)
			case ev.in != nil:
				terminal = o.handleInstaller(f, *ev.in)
			}
			if terminal {
				o.finishFlight(f)
				return
			}
		case <-f.done:
			return
		}
	}
}

// handleDownload applies one download lifecycle event. Returns true on
// a terminal transition for this flight.
func (o *Orchestrator) handleDownload(f *flight, ev download.Event) bool {
	log := logger.Logger()
	identity := f.identity

	switch ev.Kind {
	case download.Started:
		o.registry.Update(identity, status.Downloading, status.NewAction("cancel", identity))
		return false

	case download.Progress:
		o.registry.UpdateProgress(identity, ev.TotalBytes, ev.BytesRead)
		return false

	case download.Completed:
		log.Infof("download completed of %s to %s", identity, ev.LocalPath)
		o.registry.Update(identity, status.ReadyToInstall, nil)

		if _, ok := o.registry.Get(identity); !ok {
			// record vanished (cancelled) between events
			return true
		}

		// swap the download subscription for the installer one before
		// the install starts, so no installer event is missed
		o.mu.Lock()
		if f.finished {
			o.mu.Unlock()
			return true
		}
		if f.unsubDownload != nil {
			f.unsubDownload()
			f.unsubDownload = nil
		}
		f.unsubInstall = o.installerBus.Subscribe(identity, func(ev installer.Event) {
			f.push(event{in: &ev})
		})
		o.mu.Unlock()

		o.inst.Install(ev.LocalPath, identity, f.req)
		return false

	case download.Interrupted:
		// the request is considered abandoned, not retried
		log.Infof("download of %s interrupted", identity)
		o.registry.Update(identity, status.Unknown, nil)
		return true

	default:
		log.Errorf("unhandled download event kind %d for %s", ev.Kind, identity)
		return false
	}
}

// handleInstaller applies one installer lifecycle event. Returns true
// on a terminal transition for this flight.
func (o *Orchestrator) handleInstaller(f *flight, ev installer.Event) bool {
	log := logger.Logger()
	identity := f.identity

	switch ev.Kind {
	case installer.InstallStarted:
		o.registry.Update(identity, status.Installing, nil)
		return false

	case installer.InstallComplete:
		o.registry.Update(identity, status.Installed, nil)
		if o.pkgRegistry != nil {
			if rec, ok := o.registry.Get(identity); ok {
				o.pkgRegistry.SetInstaller(rec.PackageName, identity)
			}
		}
		return true

	case installer.InstallInterrupted:
		if ev.ErrorText != "" {
			o.registry.SetError(identity, ev.ErrorText)
		} else {
			// silent cancel, e.g. user dismissed the prompt
			o.registry.Remove(identity)
		}
		return true

	case installer.UserInteractionRequired:
		o.registry.Update(identity, status.ReadyToInstall, ev.Action)
		return false

	default:
		log.Errorf("unhandled installer event kind %d for %s", ev.Kind, identity)
		return false
	}
}

// finishFlight releases every subscription the flight holds and removes
// it from the table. Idempotent; callable from any goroutine.
func (o *Orchestrator) finishFlight(f *flight) {
	o.mu.Lock()
	if f.finished {
		o.mu.Unlock()
		return
	}
	f.finished = true
	delete(o.flights, f.identity)
	unsubD, unsubI := f.unsubDownload, f.unsubInstall
	f.unsubDownload, f.unsubInstall = nil, nil
	o.mu.Unlock()

	close(f.done)
	if unsubD != nil {
		unsubD()
	}
	if unsubI != nil {
		unsubI()
	}
}
