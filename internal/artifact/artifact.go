// Package artifact defines the immutable values describing one install
// request: the artifact being installed plus its optional expansion files.
package artifact

import (
	"fmt"
	"strings"
)

// Role names one of the two expansion-file slots an artifact may carry.
type Role string

const (
	RoleMain  Role = "main"
	RolePatch Role = "patch"
)

// ExpansionFile describes one auxiliary large file tied to an artifact.
type ExpansionFile struct {
	URL      string // download URL; doubles as the file's own download identity
	DestPath string // final on-disk location
	SHA256   string // expected hex digest of the placed file
}

// Request holds everything needed to fetch, verify and install one artifact.
// It is created once by the caller and never mutated; an identical value
// must reconstruct after a crash-redelivery.
type Request struct {
	Identity    string // canonical download URL, the unique key for this install
	PackageName string // e.g. "org.example.app"
	VersionCode int64
	Size        int64  // expected file size in bytes
	SHA256      string // expected hex digest of the complete file

	MainExpansion  *ExpansionFile
	PatchExpansion *ExpansionFile
}

// Expansion returns the descriptor for the given role, or nil.
func (r *Request) Expansion(role Role) *ExpansionFile {
	switch role {
	case RoleMain:
		return r.MainExpansion
	case RolePatch:
		return r.PatchExpansion
	}
	return nil
}

// Validate reports whether the request carries every required field.
func (r *Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Identity) == "":
		return fmt.Errorf("install request missing identity")
	case strings.TrimSpace(r.PackageName) == "":
		return fmt.Errorf("install request missing package name")
	case r.Size <= 0:
		return fmt.Errorf("install request missing expected size")
	case strings.TrimSpace(r.SHA256) == "":
		return fmt.Errorf("install request missing sha256")
	}
	return nil
}
