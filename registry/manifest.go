package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

type manifest struct {
	Circuits []Circuit `toml:"circuit"`
}

// LoadManifest reads a TOML circuit manifest and builds a registry rooted
// at baseDir.
func LoadManifest(baseDir string, r io.Reader) (*Registry, error) {
	var m manifest
	md, err := toml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("could not parse circuit manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in circuit manifest: %v", undecoded)
	}
	if len(m.Circuits) == 0 {
		return nil, fmt.Errorf("circuit manifest lists no circuits")
	}
	return New(baseDir, m.Circuits)
}

// LoadManifestFile is LoadManifest for a file path.
func LoadManifestFile(baseDir, path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open circuit manifest: %w", err)
	}
	defer f.Close()
	return LoadManifest(baseDir, f)
}
