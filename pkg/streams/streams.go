// Package streams reads boot stream manifests. A manifest names the
// artifacts a network-boot pipeline consumes: the PXE loader format,
// the disk image location and the raw image variants.
package streams

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifacts is the flattened view of a stream manifest. Absent entries
// are empty strings.
type Artifacts struct {
	PXEFormat    string
	DiskLocation string
	Raw          string
	RawXZ        string
}

// Parse flattens a decoded manifest. "pxe" and "disk" may be nested
// objects; "disk" additionally accepts a bare string location. "raw"
// and "raw.xz" are plain top level entries.
func Parse(manifest map[string]any) Artifacts {
	var a Artifacts

	if pxe, ok := manifest["pxe"].(map[string]any); ok {
		a.PXEFormat, _ = pxe["format"].(string)
	}

	switch disk := manifest["disk"].(type) {
	case map[string]any:
		a.DiskLocation, _ = disk["location"].(string)
	case string:
		a.DiskLocation = disk
	}

	a.Raw, _ = manifest["raw"].(string)
	a.RawXZ, _ = manifest["raw.xz"].(string)

	return a
}

// Load reads a JSON manifest from disk and flattens it.
func Load(path string) (Artifacts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Artifacts{}, fmt.Errorf("error while reading manifest %s: %w", path, err)
	}

	var manifest map[string]any

	if err := json.Unmarshal(b, &manifest); err != nil {
		return Artifacts{}, fmt.Errorf("error while decoding manifest %s: %w", path, err)
	}

	return Parse(manifest), nil
}
