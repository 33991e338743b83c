package status

import (
	"sync"
	"testing"
)

func TestUpsertAndGet(t *testing.T) {
	r := NewRegistry()

	r.Upsert("https://x/a.apk", "org.example.a", 3, Unknown, nil)
	rec, ok := r.Get("https://x/a.apk")
	if !ok {
		t.Fatal("record absent after Upsert")
	}
	if rec.PackageName != "org.example.a" || rec.VersionCode != 3 || rec.Status != Unknown {
		t.Errorf("unexpected record: %+v", rec)
	}

	// a second upsert keeps identity fields and changes status
	r.Upsert("https://x/a.apk", "ignored", 99, Downloading, NewAction("cancel", "https://x/a.apk"))
	rec, _ = r.Get("https://x/a.apk")
	if rec.PackageName != "org.example.a" || rec.VersionCode != 3 {
		t.Errorf("upsert clobbered identity fields: %+v", rec)
	}
	if rec.Status != Downloading || rec.Action == nil {
		t.Errorf("upsert did not apply status/action: %+v", rec)
	}

	if all := r.All(); len(all) != 1 {
		t.Errorf("All() returned %d records, want 1", len(all))
	}
}

func TestUpdateIsNoOpWithoutRecord(t *testing.T) {
	r := NewRegistry()
	r.Update("https://x/none.apk", Installing, nil)
	r.UpdateProgress("https://x/none.apk", 100, 50)
	r.SetError("https://x/none.apk", "boom")
	if len(r.All()) != 0 {
		t.Error("update on absent identity created a record")
	}
}

func TestProgressAndFraction(t *testing.T) {
	r := NewRegistry()
	r.Upsert("id", "pkg", 1, Downloading, nil)
	r.UpdateProgress("id", 1000, 250)

	rec, _ := r.Get("id")
	if got := rec.ProgressFraction(); got != 0.25 {
		t.Errorf("ProgressFraction = %v, want 0.25", got)
	}

	r.UpdateProgress("id", 0, 250)
	rec, _ = r.Get("id")
	if got := rec.ProgressFraction(); got != 0 {
		t.Errorf("ProgressFraction with unknown total = %v, want 0", got)
	}
}

func TestSetErrorAndClear(t *testing.T) {
	r := NewRegistry()
	r.Upsert("id", "pkg", 1, Installing, nil)
	r.SetError("id", "installer says no")

	rec, _ := r.Get("id")
	if rec.Status != Error || rec.ErrorText != "installer says no" {
		t.Errorf("unexpected record after SetError: %+v", rec)
	}

	// a non-error transition clears the message
	r.Update("id", Downloading, nil)
	rec, _ = r.Get("id")
	if rec.ErrorText != "" {
		t.Errorf("error text survived a non-error transition: %q", rec.ErrorText)
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	r.Upsert("id", "pkg", 1, Downloading, nil)
	r.Remove("id")
	if _, ok := r.Get("id"); ok {
		t.Error("record present after Remove")
	}
	r.Remove("id") // absent: no-op
}

func TestGetByPackageName(t *testing.T) {
	r := NewRegistry()
	r.Upsert("https://a/app.apk", "org.example.app", 1, ReadyToInstall, nil)
	r.Upsert("https://b/app.apk", "org.example.app", 2, Downloading, nil)
	r.Upsert("https://c/other.apk", "org.example.other", 1, Downloading, nil)

	got := r.GetByPackageName("org.example.app")
	if len(got) != 2 {
		t.Errorf("GetByPackageName returned %d records, want 2", len(got))
	}
	for _, rec := range got {
		if rec.PackageName != "org.example.app" {
			t.Errorf("record for wrong package: %+v", rec)
		}
	}
}

func TestListeners(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var events []string
	unsub := r.Subscribe(func(rec Record, removed bool) {
		mu.Lock()
		defer mu.Unlock()
		if removed {
			events = append(events, "removed:"+rec.Identity)
		} else {
			events = append(events, rec.Status.String()+":"+rec.Identity)
		}
	})

	r.Upsert("id", "pkg", 1, Unknown, nil)
	r.Update("id", Downloading, nil)
	r.Remove("id")

	mu.Lock()
	want := []string{"unknown:id", "downloading:id", "removed:id"}
	if len(events) != len(want) {
		t.Fatalf("listener saw %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, events[i], want[i])
		}
	}
	mu.Unlock()

	unsub()
	r.Upsert("id2", "pkg", 1, Unknown, nil)
	mu.Lock()
	if len(events) != len(want) {
		t.Error("listener fired after unsubscribe")
	}
	mu.Unlock()
}

func TestConcurrentUpdatesSameIdentity(t *testing.T) {
	r := NewRegistry()
	r.Upsert("id", "pkg", 1, Downloading, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			r.UpdateProgress("id", 1000, n)
		}(int64(i))
	}
	wg.Wait()

	rec, ok := r.Get("id")
	if !ok || rec.TotalBytes != 1000 {
		t.Errorf("record corrupted by concurrent updates: %+v", rec)
	}
}

func TestActionTokensUnique(t *testing.T) {
	a := NewAction("cancel", "id")
	b := NewAction("cancel", "id")
	if a.ID == b.ID {
		t.Error("action tokens are not unique")
	}
	if a.Kind != "cancel" || a.Identity != "id" {
		t.Errorf("unexpected action: %+v", a)
	}
}
