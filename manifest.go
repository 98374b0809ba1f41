package corpus

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aetheric/corpus/internal/scan"
)

// Manifest partitions content file names into prefetch tiers.
//
// Entries are asset file names in the content grammar, optionally carrying
// profile tokens ({life_path}, {expression}, {soul_urge}) that are
// interpolated from a Profile before loading. Missing fields are empty
// tiers, never an error.
type Manifest struct {
	// Essential files are warmed under the hard budget at startup.
	Essential []string `yaml:"essential"`

	// NearTerm files are warmed best-effort in the background.
	NearTerm []string `yaml:"near_term"`

	// OnDemand files are never prefetched; they load on first Get.
	OnDemand []string `yaml:"on_demand"`
}

// ParseManifest decodes a YAML tier manifest.
//
// A manifest missing any of the three fields yields empty tiers for them.
// Callers that want "malformed manifest means no prefetching" can ignore
// the error and pass the zero Manifest to LoadTiered.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("corpus: parse manifest: %w", err)
	}
	return m, nil
}

// Profile carries the per-user numerology values interpolated into
// manifest path templates. It is read-only input; the loader never
// persists or mutates it.
type Profile struct {
	LifePath   int
	Expression int
	SoulUrge   int
}

// replacer returns the token replacer for the profile.
func (p Profile) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{life_path}", strconv.Itoa(p.LifePath),
		"{expression}", strconv.Itoa(p.Expression),
		"{soul_urge}", strconv.Itoa(p.SoulUrge),
	)
}

// expandTier interpolates profile tokens into the tier's file names and
// parses them into keys. Entries may carry directory components, matching
// the paths the scanner indexes; the key comes from the base name alone.
// Names that do not resolve to the content grammar are returned in skipped.
func expandTier(names []string, profile Profile) (keys []Key, skipped []string) {
	r := profile.replacer()
	seen := make(map[Key]struct{}, len(names))
	for _, name := range names {
		resolved := r.Replace(name)
		key, ok := scan.ParseName(path.Base(resolved))
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, skipped
}
