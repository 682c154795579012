package devlist

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/pack/internal/version"
)

// Version is the version of a chunk list: the version of every plain member
// by path and of every merged group by merger key.
type Version struct {
	ByPath   map[string]version.Version
	ByMerger map[string]version.Version
}

// ID implements version.Version.
func (v *Version) ID() string {
	d := xxhash.New()
	write := func(prefix string, m map[string]version.Version) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = d.WriteString(prefix)
			_, _ = d.WriteString(k)
			_, _ = d.Write([]byte{0})
			_, _ = d.WriteString(m[k].ID())
			_, _ = d.Write([]byte{0})
		}
	}
	write("p:", v.ByPath)
	write("m:", v.ByMerger)
	return fmt.Sprintf("%016x", d.Sum64())
}

// Snapshot is the serializable form of a Version.
type Snapshot struct {
	ByPath   map[string]string         `cbor:"by_path" json:"by_path"`
	ByMerger map[string]MergerSnapshot `cbor:"by_merger" json:"by_merger"`
}

// MergerSnapshot keeps the entries of map versions so that merged updates
// stay incremental after a round trip.
type MergerSnapshot struct {
	ID      string            `cbor:"id" json:"id"`
	Entries map[string]string `cbor:"entries" json:"entries,omitempty"`
}

// Snapshot returns the serializable form of v.
func (v *Version) Snapshot() Snapshot {
	s := Snapshot{
		ByPath:   make(map[string]string, len(v.ByPath)),
		ByMerger: make(map[string]MergerSnapshot, len(v.ByMerger)),
	}
	for p, pv := range v.ByPath {
		s.ByPath[p] = pv.ID()
	}
	for key, mv := range v.ByMerger {
		ms := MergerSnapshot{ID: mv.ID()}
		if entries, ok := mv.(version.MapVersion); ok {
			ms.Entries = make(map[string]string, len(entries))
			for k, e := range entries {
				ms.Entries[k] = e
			}
		}
		s.ByMerger[key] = ms
	}
	return s
}

// FromSnapshot restores a version. Plain member versions come back as
// opaque ids, which is all updates need to compare them.
func FromSnapshot(s Snapshot) *Version {
	v := &Version{
		ByPath:   make(map[string]version.Version, len(s.ByPath)),
		ByMerger: make(map[string]version.Version, len(s.ByMerger)),
	}
	for p, id := range s.ByPath {
		v.ByPath[p] = version.IDVersion(id)
	}
	for key, ms := range s.ByMerger {
		if ms.Entries != nil {
			v.ByMerger[key] = version.MapVersion(ms.Entries)
		} else {
			v.ByMerger[key] = version.IDVersion(ms.ID)
		}
	}
	return v
}
