package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// Options configures the HTTP gateway.
type Options struct {
	// Workers is the number of parallel transfer workers.
	Workers int

	// ProgressStride is how many bytes to read between Progress events.
	ProgressStride int64

	// Client overrides the HTTP client; defaults to NewSecureHTTPClient.
	Client *http.Client
}

// NewSecureHTTPClient returns an http.Client restricted to TLS 1.2/1.3
// with a pinned cipher list. Callers reuse this instead of re-defining
// the TLS settings everywhere.
func NewSecureHTTPClient() *http.Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,

		// CipherSuites applies only to TLS 1.0–1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}

	transport := &http.Transport{
		TLSClientConfig:   tlsConfig,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{Transport: transport}
}

type transfer struct {
	cancel    context.CancelFunc
	cancelled bool
}

// HTTPGateway is a Gateway backed by plain HTTP GETs and a bounded
// worker pool. The identity itself is the URL; destination paths come
// from the resolve function so the content store stays the single owner
// of path derivation.
type HTTPGateway struct {
	opts    Options
	client  *http.Client
	resolve func(identity string) string

	mu      sync.Mutex
	closed  bool
	state   map[string]*transfer
	subs    map[string]map[int]func(Event)
	nextSub int

	jobs    chan string
	pending sync.WaitGroup // handoff goroutines with a send in flight
	wg      sync.WaitGroup
}

// NewHTTPGateway starts a gateway whose workers download each queued
// identity to resolve(identity).
func NewHTTPGateway(resolve func(identity string) string, opts Options) *HTTPGateway {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.ProgressStride <= 0 {
		opts.ProgressStride = 256 * 1024
	}
	client := opts.Client
	if client == nil {
		client = NewSecureHTTPClient()
	}

	g := &HTTPGateway{
		opts:    opts,
		client:  client,
		resolve: resolve,
		state:   make(map[string]*transfer),
		subs:    make(map[string]map[int]func(Event)),
		jobs:    make(chan string, 256),
	}
	for i := 0; i < opts.Workers; i++ {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			for identity := range g.jobs {
				g.run(identity)
			}
		}()
	}
	return g
}

// Close stops accepting work and waits for in-flight transfers. Queue
// calls after Close are ignored.
func (g *HTTPGateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	// handoff goroutines must land before the channel closes
	g.pending.Wait()
	close(g.jobs)
	g.wg.Wait()
}

// Queue enqueues a download for identity. Duplicate queues while the
// identity is queued or active are ignored.
func (g *HTTPGateway) Queue(identity string) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if _, ok := g.state[identity]; ok {
		g.mu.Unlock()
		return
	}
	g.state[identity] = &transfer{}

	select {
	case g.jobs <- identity:
		g.mu.Unlock()
	default:
		// queue backlog full, hand off without blocking the caller
		g.pending.Add(1)
		g.mu.Unlock()
		go func() {
			defer g.pending.Done()
			g.jobs <- identity
		}()
	}
}

// Cancel aborts the transfer for identity if one is queued or active.
// No-op otherwise.
func (g *HTTPGateway) Cancel(identity string) {
	g.mu.Lock()
	t, ok := g.state[identity]
	if ok {
		t.cancelled = true
		if t.cancel != nil {
			t.cancel()
		}
	}
	g.mu.Unlock()
}

// IsQueuedOrActive reports whether identity has a pending transfer.
func (g *HTTPGateway) IsQueuedOrActive(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.state[identity]
	return ok
}

// Subscribe registers fn for events scoped to identity.
func (g *HTTPGateway) Subscribe(identity string, fn func(Event)) func() {
	g.mu.Lock()
	if g.subs[identity] == nil {
		g.subs[identity] = make(map[int]func(Event))
	}
	id := g.nextSub
	g.nextSub++
	g.subs[identity][id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		if m := g.subs[identity]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(g.subs, identity)
			}
		}
		g.mu.Unlock()
	}
}

func (g *HTTPGateway) emit(ev Event) {
	g.mu.Lock()
	fns := make([]func(Event), 0, len(g.subs[ev.Identity]))
	for _, fn := range g.subs[ev.Identity] {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (g *HTTPGateway) run(identity string) {
	log := logger.Logger()

	g.mu.Lock()
	t, ok := g.state[identity]
	if !ok || t.cancelled {
		delete(g.state, identity)
		g.mu.Unlock()
		g.emit(Event{Identity: identity, Kind: Interrupted})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	g.mu.Unlock()

	defer func() {
		cancel()
		g.mu.Lock()
		delete(g.state, identity)
		g.mu.Unlock()
	}()

	dest := g.resolve(identity)
	if err := g.fetch(ctx, identity, dest); err != nil {
		if ctx.Err() == nil {
			log.Errorf("downloading %s failed: %v", identity, err)
		}
		g.emit(Event{Identity: identity, Kind: Interrupted})
		return
	}
	g.emit(Event{Identity: identity, Kind: Completed, LocalPath: dest})
}

func (g *HTTPGateway) fetch(ctx context.Context, identity, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, identity, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	partial := dest + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return err
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	g.emit(Event{Identity: identity, Kind: Started, TotalBytes: total})

	var read, lastReport int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				os.Remove(partial)
				return werr
			}
			read += int64(n)
			if read-lastReport >= g.opts.ProgressStride {
				lastReport = read
				g.emit(Event{Identity: identity, Kind: Progress, BytesRead: read, TotalBytes: total})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			os.Remove(partial)
			return rerr
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return err
	}
	g.emit(Event{Identity: identity, Kind: Progress, BytesRead: read, TotalBytes: total})

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return err
	}
	return nil
}
