// Package expansion manages an artifact's auxiliary large files: one
// optional "main" and one optional "patch" file per artifact. Files are
// fetched under their own URL identity, hash-verified, atomically
// placed, and kept exclusive per role. Expansion handling is
// best-effort: its failures never block the artifact install.
package expansion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/open-edge-platform/install-orchestrator/internal/artifact"
	"github.com/open-edge-platform/install-orchestrator/internal/cache"
	"github.com/open-edge-platform/install-orchestrator/internal/download"
	"github.com/open-edge-platform/install-orchestrator/internal/status"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// Coordinator tracks in-flight expansion downloads and the file
// currently installed for each (artifact, role) slot.
type Coordinator struct {
	gateway  download.Gateway
	registry *status.Registry

	mu        sync.Mutex
	active    map[string]func() // expansion URL -> unsubscribe
	installed map[string]string // identity|role -> placed path
}

// New creates a Coordinator. Progress of expansion downloads is
// reported against the owning artifact's status record.
func New(gateway download.Gateway, registry *status.Registry) *Coordinator {
	return &Coordinator{
		gateway:   gateway,
		registry:  registry,
		active:    make(map[string]func()),
		installed: make(map[string]string),
	}
}

func roleKey(identity string, role artifact.Role) string {
	return identity + "|" + string(role)
}

// Fetch queues the expansion file of the given role for download unless
// it is already in place or already being fetched. It registers a
// dedicated listener for the expansion file's own download identity.
func (c *Coordinator) Fetch(req *artifact.Request, role artifact.Role) {
	ex := req.Expansion(role)
	if ex == nil || ex.URL == "" || ex.DestPath == "" {
		return
	}
	if _, err := os.Stat(ex.DestPath); err == nil {
		return
	}

	c.mu.Lock()
	if _, ok := c.active[ex.URL]; ok {
		c.mu.Unlock()
		return
	}
	identity := req.Identity
	unsub := c.gateway.Subscribe(ex.URL, func(ev download.Event) {
		c.handle(identity, role, ex, ev)
	})
	c.active[ex.URL] = unsub
	c.mu.Unlock()

	logger.Logger().Debugf("fetching %s expansion for %s from %s", role, identity, ex.URL)
	c.gateway.Queue(ex.URL)
}

// Cancel aborts any in-flight expansion downloads for the request and
// drops their listeners. Safe to call when nothing is active.
func (c *Coordinator) Cancel(req *artifact.Request) {
	for _, role := range []artifact.Role{artifact.RoleMain, artifact.RolePatch} {
		ex := req.Expansion(role)
		if ex == nil || ex.URL == "" {
			continue
		}
		c.gateway.Cancel(ex.URL)
		c.drop(ex.URL)
	}
}

func (c *Coordinator) drop(url string) {
	c.mu.Lock()
	unsub := c.active[url]
	delete(c.active, url)
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Coordinator) handle(identity string, role artifact.Role, ex *artifact.ExpansionFile, ev download.Event) {
	log := logger.Logger()
	switch ev.Kind {
	case download.Started:
		log.Debugf("%s expansion download started for %s", role, identity)
	case download.Progress:
		c.registry.UpdateProgress(identity, ev.TotalBytes, ev.BytesRead)
	case download.Completed:
		c.drop(ex.URL)
		if err := c.place(identity, role, ex, ev.LocalPath); err != nil {
			log.Warnf("placing %s expansion for %s failed: %v", role, identity, err)
		}
	case download.Interrupted:
		// best-effort: drop the listener, no retry
		c.drop(ex.URL)
	default:
		log.Errorf("unhandled download event kind %d for %s", ev.Kind, ev.Identity)
	}
}

// place verifies the downloaded file and moves it into the destination,
// then removes the previously installed file for the same role. The
// downloaded temp file is discarded either way.
func (c *Coordinator) place(identity string, role artifact.Role, ex *artifact.ExpansionFile, localPath string) error {
	log := logger.Logger()
	defer os.Remove(localPath)

	ok, err := cache.FileMatchesSHA256(localPath, ex.SHA256)
	if err != nil {
		return err
	}
	if !ok {
		log.Warnf("%s did not match expected hash, discarding", localPath)
		return nil
	}

	if err := placeFile(localPath, ex.DestPath); err != nil {
		return err
	}
	log.Infof("installed %s expansion for %s at %s", role, identity, ex.DestPath)

	key := roleKey(identity, role)
	c.mu.Lock()
	prev := c.installed[key]
	c.installed[key] = ex.DestPath
	c.mu.Unlock()

	if prev != "" && prev != ex.DestPath {
		log.Debugf("deleting obsolete %s expansion %s", role, prev)
		if err := os.Remove(prev); err != nil && !os.IsNotExist(err) {
			log.Warnf("deleting obsolete expansion %s failed: %v", prev, err)
		}
	}
	return nil
}

// placeFile copies src into dest's directory under a temp name and
// renames it into place, creating parent directories as needed.
func placeFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
