package main

import (
	"sync"
	"testing"

	"github.com/open-edge-platform/install-orchestrator/internal/status"
)

// Registry listeners run on whichever goroutine mutated the registry,
// so the watcher must tolerate concurrent notifications: artifact
// progress from the flight goroutine and expansion-file progress from
// gateway workers arrive at the same time.
func TestInstallWatcherConcurrentNotifications(t *testing.T) {
	identity := "https://x/app-1.apk"
	w := newInstallWatcher(identity)

	rec := status.Record{
		Identity:  identity,
		Status:    status.Downloading,
		BytesRead: 100,
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.handle(rec, false)
			}
		}()
	}
	wg.Wait()

	w.handle(status.Record{Identity: identity, Status: status.Installed}, false)

	out := <-w.done
	if out.status != status.Installed || out.removed {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestInstallWatcherDeliversOutcomeOnce(t *testing.T) {
	identity := "https://x/app-1.apk"
	w := newInstallWatcher(identity)

	// a remove can trail the error transition; only the first terminal
	// notification may reach the outcome channel
	w.handle(status.Record{Identity: identity, Status: status.Error, ErrorText: "boom"}, false)
	w.handle(status.Record{Identity: identity, Status: status.Error}, true)

	out := <-w.done
	if out.status != status.Error || out.errText != "boom" || out.removed {
		t.Errorf("unexpected outcome %+v", out)
	}
	select {
	case extra := <-w.done:
		t.Errorf("unexpected second outcome %+v", extra)
	default:
	}
}

func TestInstallWatcherIgnoresOtherIdentities(t *testing.T) {
	w := newInstallWatcher("https://x/app-1.apk")

	w.handle(status.Record{Identity: "https://x/other.apk", Status: status.Installed}, false)

	select {
	case out := <-w.done:
		t.Errorf("unexpected outcome %+v for foreign identity", out)
	default:
	}
}

func TestInstallWatcherInterruptedDownloadAbandons(t *testing.T) {
	identity := "https://x/app-1.apk"
	w := newInstallWatcher(identity)

	// Unknown before any download activity is the initial upsert, not a
	// termination
	w.handle(status.Record{Identity: identity, Status: status.Unknown}, false)
	select {
	case out := <-w.done:
		t.Fatalf("unexpected outcome %+v before download started", out)
	default:
	}

	w.handle(status.Record{Identity: identity, Status: status.Downloading}, false)
	w.handle(status.Record{Identity: identity, Status: status.Unknown}, false)

	out := <-w.done
	if out.status != status.Unknown || out.removed {
		t.Errorf("unexpected outcome %+v", out)
	}
}
