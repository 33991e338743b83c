package orchestrator

import (
	"github.com/open-edge-platform/install-orchestrator/internal/installer"
	"github.com/open-edge-platform/install-orchestrator/internal/status"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// RecoverPendingInstalls re-attaches installer-event listeners for
// every record left in ReadyToInstall by a previous process lifetime,
// so an artifact downloaded before a restart still reaches a terminal
// state once the user acts on it. Explicitly triggered on cold start,
// never automatic.
func (o *Orchestrator) RecoverPendingInstalls() {
	log := logger.Logger()
	for _, rec := range o.registry.All() {
		if rec.Status != status.ReadyToInstall {
			continue
		}

		o.mu.Lock()
		_, inFlight := o.flights[rec.Identity]
		o.mu.Unlock()
		if inFlight {
			continue
		}

		log.Infof("re-attaching installer listeners for %s", rec.Identity)
		f := &flight{
			identity: rec.Identity,
			events:   make(chan event, 16),
			done:     make(chan struct{}),
		}
		o.mu.Lock()
		o.flights[rec.Identity] = f
		f.unsubInstall = o.installerBus.Subscribe(rec.Identity, func(ev installer.Event) {
			f.push(event{in: &ev})
		})
		o.mu.Unlock()

		go o.runFlight(f)
	}
}
