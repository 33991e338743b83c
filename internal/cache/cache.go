// Package cache is the content store for downloaded artifact files.
// Every on-disk path derived from an artifact identity comes from
// ResolvePath; no other component computes cache paths on its own.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// Store resolves artifact identities to cache paths and checks
// downloaded files against their expected size and digest.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", abs, err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

// ResolvePath maps an identity to its cache file path. The mapping is
// deterministic: the same identity always resolves to the same path.
// A short digest of the identity prefixes the base filename so that
// same-named files from different locations never collide.
func (s *Store) ResolvePath(identity string) string {
	base := "artifact"
	if u, err := url.Parse(identity); err == nil {
		if b := path.Base(u.Path); b != "" && b != "/" && b != "." {
			base = b
		}
	}
	sum := sha256.Sum256([]byte(identity))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:4])+"-"+base)
}

// Exists reports whether the file at path is present.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SizeOf returns the size of the file at path, or 0 if it is absent.
func (s *Store) SizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// IsValid reports whether the file at path matches the expected size and
// SHA-256 digest. The hash comparison reads the whole file, so callers
// only invoke this once the size already matches.
func (s *Store) IsValid(path string, expectedSize int64, expectedSHA256 string) bool {
	if s.SizeOf(path) != expectedSize {
		return false
	}
	ok, err := FileMatchesSHA256(path, expectedSHA256)
	if err != nil {
		logger.Logger().Warnf("hashing %s failed: %v", path, err)
		return false
	}
	return ok
}

// FileMatchesSHA256 hashes the complete file at path and compares the
// digest against the expected hex string (case-insensitive).
func FileMatchesSHA256(path string, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	return strings.EqualFold(got, expected), nil
}
