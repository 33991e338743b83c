package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/install-orchestrator/internal/artifact"
	"github.com/open-edge-platform/install-orchestrator/internal/config/validate"
)

// requestManifestSchema is the JSON schema every install-request
// manifest must satisfy before intake.
const requestManifestSchema = `{
	"type": "object",
	"required": ["identity", "packageName", "versionCode", "size", "sha256"],
	"properties": {
		"identity": {"type": "string", "minLength": 1},
		"packageName": {"type": "string", "minLength": 1},
		"versionCode": {"type": "integer", "minimum": 0},
		"size": {"type": "integer", "minimum": 1},
		"sha256": {"type": "string", "pattern": "^[0-9a-fA-F]{64}$"},
		"expansions": {
			"type": "object",
			"properties": {
				"main": {"$ref": "#/$defs/expansion"},
				"patch": {"$ref": "#/$defs/expansion"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false,
	"$defs": {
		"expansion": {
			"type": "object",
			"required": ["url", "destPath", "sha256"],
			"properties": {
				"url": {"type": "string", "minLength": 1},
				"destPath": {"type": "string", "minLength": 1},
				"sha256": {"type": "string", "pattern": "^[0-9a-fA-F]{64}$"}
			},
			"additionalProperties": false
		}
	}
}`

// requestManifest mirrors the YAML manifest layout.
type requestManifest struct {
	Identity    string `yaml:"identity"`
	PackageName string `yaml:"packageName"`
	VersionCode int64  `yaml:"versionCode"`
	Size        int64  `yaml:"size"`
	SHA256      string `yaml:"sha256"`
	Expansions  struct {
		Main  *expansionManifest `yaml:"main"`
		Patch *expansionManifest `yaml:"patch"`
	} `yaml:"expansions"`
}

type expansionManifest struct {
	URL      string `yaml:"url"`
	DestPath string `yaml:"destPath"`
	SHA256   string `yaml:"sha256"`
}

// ValidateRequestManifest checks manifest bytes against the schema
// without building a request from them.
func ValidateRequestManifest(data []byte) error {
	return validate.ValidateAgainstSchema("request-manifest.json", []byte(requestManifestSchema), data, "")
}

// LoadRequest reads an install-request manifest file, validates it
// against the schema, and converts it to an artifact request.
func LoadRequest(path string) (*artifact.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request manifest %s: %w", path, err)
	}
	if err := ValidateRequestManifest(data); err != nil {
		return nil, fmt.Errorf("request manifest %s: %w", path, err)
	}

	var m requestManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing request manifest %s: %w", path, err)
	}

	req := &artifact.Request{
		Identity:    m.Identity,
		PackageName: m.PackageName,
		VersionCode: m.VersionCode,
		Size:        m.Size,
		SHA256:      m.SHA256,
	}
	if e := m.Expansions.Main; e != nil {
		req.MainExpansion = &artifact.ExpansionFile{URL: e.URL, DestPath: e.DestPath, SHA256: e.SHA256}
	}
	if e := m.Expansions.Patch; e != nil {
		req.PatchExpansion = &artifact.ExpansionFile{URL: e.URL, DestPath: e.DestPath, SHA256: e.SHA256}
	}
	return req, nil
}
