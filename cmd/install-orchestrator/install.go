package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/open-edge-platform/install-orchestrator/internal/cache"
	"github.com/open-edge-platform/install-orchestrator/internal/config"
	"github.com/open-edge-platform/install-orchestrator/internal/download"
	"github.com/open-edge-platform/install-orchestrator/internal/installer"
	"github.com/open-edge-platform/install-orchestrator/internal/orchestrator"
	"github.com/open-edge-platform/install-orchestrator/internal/status"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// createInstallCommand creates the install subcommand
func createInstallCommand() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install [flags] REQUEST_FILE",
		Short: "Download, verify and install the artifact described by a request manifest",
		Long: `Install runs the full lifecycle for one request manifest: the artifact
is downloaded (or taken from the cache when already present and valid),
any expansion files are fetched and placed, and the configured install
command is invoked on the result. Interrupting with Ctrl-C cancels the
install and removes its status record.`,
		Args: cobra.ExactArgs(1),
		RunE: executeInstall,
	}
	return installCmd
}

// outcome is the terminal state the CLI waits for.
type outcome struct {
	status  status.Status
	errText string
	removed bool
}

// installWatcher folds registry notifications for one identity into a
// single terminal outcome, rendering download progress along the way.
// Notifications arrive on whichever goroutine mutated the registry
// (flight goroutines for the artifact, gateway workers for expansion
// files), so all state is guarded by mu.
type installWatcher struct {
	identity string
	done     chan outcome

	mu          sync.Mutex
	bar         *progressbar.ProgressBar
	sawDownload bool
	finished    bool
}

func newInstallWatcher(identity string) *installWatcher {
	return &installWatcher{
		identity: identity,
		done:     make(chan outcome, 1),
	}
}

// handle is the registry listener.
func (w *installWatcher) handle(rec status.Record, removed bool) {
	if rec.Identity != w.identity {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case removed:
		w.finish(outcome{status: rec.Status, removed: true})
	case rec.Status == status.Installed, rec.Status == status.Error:
		w.finish(outcome{status: rec.Status, errText: rec.ErrorText})
	case rec.Status == status.Downloading:
		w.sawDownload = true
		if w.bar == nil && rec.TotalBytes > 0 {
			w.bar = progressbar.NewOptions64(rec.TotalBytes,
				progressbar.OptionFullWidth(),
				progressbar.OptionSetDescription("downloading"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowBytes(true),
				progressbar.OptionThrottle(100*time.Millisecond),
			)
		}
		if w.bar != nil {
			w.bar.Set64(rec.BytesRead)
		}
	case rec.Status == status.Unknown && w.sawDownload:
		// reverted after an interrupted download; abandoned
		w.finish(outcome{status: rec.Status})
	}
}

// finish delivers the outcome once; later terminal notifications are
// dropped. Caller holds mu.
func (w *installWatcher) finish(out outcome) {
	if w.finished {
		return
	}
	w.finished = true
	w.done <- out
}

// closeBar finalizes the progress bar if one was started.
func (w *installWatcher) closeBar() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bar != nil {
		w.bar.Finish()
		fmt.Println()
	}
}

func executeInstall(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	req, err := config.LoadRequest(args[0])
	if err != nil {
		return fmt.Errorf("loading request: %v", err)
	}

	helpers := config.NewConfigHelpers(globalConfig)
	cacheDir, err := helpers.CacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache directory: %v", err)
	}
	store, err := cache.New(cacheDir)
	if err != nil {
		return err
	}

	gateway := download.NewHTTPGateway(store.ResolvePath, download.Options{Workers: helpers.Workers()})
	defer gateway.Close()

	registry := status.NewRegistry()
	bus := installer.NewBus()
	inst := installer.NewExecInstaller(bus, globalConfig.InstallCommand)
	orch := orchestrator.New(store, gateway, registry, bus, inst, nil)

	watcher := newInstallWatcher(req.Identity)
	unsub := registry.Subscribe(watcher.handle)
	defer unsub()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		log.Infof("interrupt received, cancelling %s", req.Identity)
		orch.Cancel(req.Identity)
	}()

	log.Infof("installing %s %d", req.PackageName, req.VersionCode)
	if err := orch.RequestInstall(req); err != nil {
		return fmt.Errorf("request rejected: %v", err)
	}

	out := <-watcher.done
	watcher.closeBar()
	switch {
	case out.removed:
		return fmt.Errorf("install of %s was cancelled", req.Identity)
	case out.status == status.Error:
		return fmt.Errorf("install failed: %s", out.errText)
	case out.status == status.Installed:
		log.Infof("✓ %s installed", req.PackageName)
		return nil
	default:
		return fmt.Errorf("download of %s was interrupted; re-run to retry", req.Identity)
	}
}
