package installer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/open-edge-platform/install-orchestrator/internal/utils/shell"
)

// collectEvents subscribes to the bus and returns a snapshot accessor.
func collectEvents(bus *Bus, identity string) func() []Event {
	var mu sync.Mutex
	var events []Event
	bus.Subscribe(identity, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	return func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event{}, events...)
	}
}

func waitForEvents(t *testing.T, snapshot func() []Event, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %v", n, snapshot())
	return nil
}

func TestExecInstallerSuccess(t *testing.T) {
	originalExecutor := shell.Default
	defer func() { shell.Default = originalExecutor }()
	mock := &shell.MockExecutor{
		Commands: []shell.MockCommand{
			{Pattern: "dpkg -i /tmp/app.deb", Output: "ok", Error: nil},
		},
	}
	shell.Default = mock

	bus := NewBus()
	identity := "https://x/app.deb"
	snapshot := collectEvents(bus, identity)

	inst := NewExecInstaller(bus, "dpkg -i {path}")
	inst.Install("/tmp/app.deb", identity, nil)

	events := waitForEvents(t, snapshot, 2)
	if events[0].Kind != InstallStarted {
		t.Errorf("first event = %v, want install-started", events[0].Kind)
	}
	if events[1].Kind != InstallComplete {
		t.Errorf("second event = %v, want install-complete", events[1].Kind)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("executor ran %d commands, want 1", len(mock.Calls))
	}
}

func TestExecInstallerFailureCarriesOutput(t *testing.T) {
	originalExecutor := shell.Default
	defer func() { shell.Default = originalExecutor }()
	shell.Default = &shell.MockExecutor{
		Commands: []shell.MockCommand{
			{Pattern: "dpkg -i", Output: "dependency problems\n", Error: fmt.Errorf("exit status 1")},
		},
	}

	bus := NewBus()
	identity := "https://x/app.deb"
	snapshot := collectEvents(bus, identity)

	inst := NewExecInstaller(bus, "dpkg -i {path}")
	inst.Install("/tmp/app.deb", identity, nil)

	events := waitForEvents(t, snapshot, 2)
	if events[1].Kind != InstallInterrupted {
		t.Fatalf("second event = %v, want install-interrupted", events[1].Kind)
	}
	if events[1].ErrorText != "dependency problems" {
		t.Errorf("error text = %q, want command output", events[1].ErrorText)
	}
}

func TestBusScopesByIdentity(t *testing.T) {
	bus := NewBus()
	a := collectEvents(bus, "https://x/a.apk")
	b := collectEvents(bus, "https://x/b.apk")

	bus.Emit(Event{Identity: "https://x/a.apk", Kind: InstallStarted})
	if len(a()) != 1 {
		t.Errorf("subscriber a saw %d events, want 1", len(a()))
	}
	if len(b()) != 0 {
		t.Errorf("subscriber b saw %d events, want 0", len(b()))
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe("id", func(Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	bus.Emit(Event{Identity: "id", Kind: InstallStarted})
	unsub()
	bus.Emit(Event{Identity: "id", Kind: InstallComplete})

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("subscriber fired %d times, want 1", count)
	}
}
