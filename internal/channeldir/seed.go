package channeldir

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// seedFile is the on-disk shape of channels.yaml: one block of name->ID
// pairs per platform, read once at startup (spec §4.A/4.B "Channel
// Directory is populated lazily per adapter... "; the static file covers
// the channels an operator wants resolvable before any adapter has had a
// chance to list).
//
//	telegram:
//	  ops-alerts: "-1001234567890"
//	discord:
//	  general: "123456789012345678"
type seedFile map[config.Platform]map[string]string

// LoadSeedFile reads a channels.yaml-shaped file and merges every
// platform's entries into the directory. A missing file is not an error —
// the seed is optional.
func (d *Directory) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("channeldir: reading seed file %s: %w", path, err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("channeldir: parsing seed file %s: %w", path, err)
	}

	for platform, names := range parsed {
		d.LoadSeed(platform, names)
	}
	return nil
}
