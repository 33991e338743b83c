package shell

import (
	"errors"
	"strings"
	"testing"
)

func TestHostExecutorRunsCommand(t *testing.T) {
	out, err := HostExecutor{}.Exec("echo 'hello'")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestHostExecutorReturnsErrorWithOutput(t *testing.T) {
	out, err := HostExecutor{}.Exec("echo 'boom' && exit 3")
	if err == nil {
		t.Fatal("expected error for failing command")
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("expected output to be preserved on failure, got %q", out)
	}
}

func TestMockExecutorMatchesPatterns(t *testing.T) {
	wantErr := errors.New("install failed")
	mock := &MockExecutor{
		Commands: []MockCommand{
			{Pattern: "dpkg -i", Output: "Setting up app\n"},
			{Pattern: "rm -f", Error: wantErr},
		},
	}

	out, err := mock.Exec("dpkg -i /tmp/app.deb")
	if err != nil || out != "Setting up app\n" {
		t.Errorf("dpkg match: got (%q, %v)", out, err)
	}

	if _, err := mock.Exec("rm -f /tmp/app.deb"); !errors.Is(err, wantErr) {
		t.Errorf("rm match: got %v, want %v", err, wantErr)
	}

	if _, err := mock.Exec("unknown command"); err == nil {
		t.Error("expected error for unmatched command")
	}

	if len(mock.Calls) != 3 {
		t.Errorf("expected 3 recorded calls, got %d", len(mock.Calls))
	}
}
