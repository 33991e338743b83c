// Package shell runs host commands through a swappable Executor so
// tests can substitute canned results for real process execution.
package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// Executor runs one shell command string and returns its combined output.
type Executor interface {
	Exec(cmdStr string) (string, error)
}

// Default is the process-wide executor. Tests swap it for a MockExecutor.
var Default Executor = HostExecutor{}

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh" // fallback
}

// HostExecutor executes commands on the host via the system shell.
type HostExecutor struct{}

// Exec executes a command and returns its combined output.
func (HostExecutor) Exec(cmdStr string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", cmdStr)

	cmd := exec.Command(getShell(), "-c", cmdStr)
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

// MockCommand is one canned command result for a MockExecutor.
type MockCommand struct {
	Pattern string // substring the command must contain
	Output  string
	Error   error
}

// MockExecutor matches commands against patterns and returns canned
// results, recording every command it sees.
type MockExecutor struct {
	Commands []MockCommand
	Calls    []string
}

// Exec returns the first MockCommand whose pattern matches cmdStr.
func (m *MockExecutor) Exec(cmdStr string) (string, error) {
	m.Calls = append(m.Calls, cmdStr)
	for _, mc := range m.Commands {
		if strings.Contains(cmdStr, mc.Pattern) {
			return mc.Output, mc.Error
		}
	}
	return "", fmt.Errorf("no mock for command %q", cmdStr)
}
