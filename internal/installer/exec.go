package installer

import (
	"strings"

	"github.com/open-edge-platform/install-orchestrator/internal/artifact"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/shell"
)

// PathPlaceholder is replaced with the downloaded file path in the
// configured install command.
const PathPlaceholder = "{path}"

// ExecInstaller installs artifacts by running a configured shell
// command, e.g. "dpkg -i {path}". The command's exit status decides
// between InstallComplete and InstallInterrupted; its output becomes
// the error message on failure.
type ExecInstaller struct {
	bus     *Bus
	command string
}

// NewExecInstaller creates an ExecInstaller emitting events on bus.
func NewExecInstaller(bus *Bus, command string) *ExecInstaller {
	return &ExecInstaller{bus: bus, command: command}
}

// Install runs the install command asynchronously.
func (i *ExecInstaller) Install(localPath, identity string, req *artifact.Request) {
	go func() {
		log := logger.Logger()
		i.bus.Emit(Event{Identity: identity, Kind: InstallStarted})

		cmdStr := strings.ReplaceAll(i.command, PathPlaceholder, localPath)
		log.Infof("installing %s", localPath)
		out, err := shell.Default.Exec(cmdStr)
		if err != nil {
			msg := strings.TrimSpace(out)
			if msg == "" {
				msg = err.Error()
			}
			log.Errorf("install of %s failed: %v", localPath, err)
			i.bus.Emit(Event{Identity: identity, Kind: InstallInterrupted, ErrorText: msg})
			return
		}
		i.bus.Emit(Event{Identity: identity, Kind: InstallComplete})
	}()
}
