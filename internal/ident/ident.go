// Package ident provides AssetIdent, the identity of every asset in the
// build graph.
package ident

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/pack/internal/vpath"
)

// Key is a stable fingerprint of an AssetIdent.
type Key uint64

func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// AssetIdent identifies an asset by its path and an ordered list of
// modifiers that distinguish derived assets living at the same path.
type AssetIdent struct {
	path      vpath.Path
	modifiers []string
	key       Key
}

// New creates an ident without modifiers.
func New(p vpath.Path) AssetIdent {
	id := AssetIdent{path: p}
	id.key = id.computeKey()
	return id
}

// Path returns the path of the asset.
func (i AssetIdent) Path() vpath.Path {
	return i.path
}

// Modifiers returns a copy of the modifier list.
func (i AssetIdent) Modifiers() []string {
	out := make([]string, len(i.modifiers))
	copy(out, i.modifiers)
	return out
}

// WithModifier returns a new ident with modifier appended. Adding a modifier
// that is already present returns the ident unchanged.
func (i AssetIdent) WithModifier(modifier string) AssetIdent {
	for _, m := range i.modifiers {
		if m == modifier {
			return i
		}
	}
	mods := make([]string, len(i.modifiers), len(i.modifiers)+1)
	copy(mods, i.modifiers)
	id := AssetIdent{path: i.path, modifiers: append(mods, modifier)}
	id.key = id.computeKey()
	return id
}

// Key returns the ident fingerprint. Equal idents have equal keys.
func (i AssetIdent) Key() Key {
	return i.key
}

// Fingerprint implements the memo key contract.
func (i AssetIdent) Fingerprint() string {
	return i.key.String()
}

// Equal reports whether both idents name the same asset.
func (i AssetIdent) Equal(other AssetIdent) bool {
	if i.path != other.path || len(i.modifiers) != len(other.modifiers) {
		return false
	}
	for n := range i.modifiers {
		if i.modifiers[n] != other.modifiers[n] {
			return false
		}
	}
	return true
}

func (i AssetIdent) String() string {
	if len(i.modifiers) == 0 {
		return string(i.path)
	}
	var b strings.Builder
	b.WriteString(string(i.path))
	for _, m := range i.modifiers {
		b.WriteString(" (")
		b.WriteString(m)
		b.WriteString(")")
	}
	return b.String()
}

// Compare orders idents by path, then by modifiers.
func Compare(a, b AssetIdent) int {
	if c := strings.Compare(string(a.path), string(b.path)); c != 0 {
		return c
	}
	for n := 0; n < len(a.modifiers) && n < len(b.modifiers); n++ {
		if c := strings.Compare(a.modifiers[n], b.modifiers[n]); c != 0 {
			return c
		}
	}
	return len(a.modifiers) - len(b.modifiers)
}

// OutputName derives a file name for the ident. The path is made relative
// to contextPath when possible and path separators become underscores.
// The flattened name alone is ambiguous when the path contains an
// underscore or lies outside contextPath, so in those cases, and whenever
// the ident has modifiers, a short digest of the full path and the
// modifiers is appended.
func (i AssetIdent) OutputName(contextPath vpath.Path, ext string) string {
	rel, inside := contextPath.PathTo(i.path)
	if !inside || rel == "" {
		inside = false
		rel = strings.TrimPrefix(string(i.path), "/")
	}
	name := strings.ReplaceAll(rel, "/", "_")
	if len(i.modifiers) > 0 || !inside || strings.Contains(rel, "_") {
		d := xxhash.New()
		_, _ = d.WriteString(string(i.path))
		for _, m := range i.modifiers {
			_, _ = d.Write([]byte{0})
			_, _ = d.WriteString(m)
		}
		name += "_" + Key(d.Sum64()).String()[:8]
	}
	return name + ext
}

func (i AssetIdent) computeKey() Key {
	d := xxhash.New()
	_, _ = d.WriteString(string(i.path))
	for _, m := range i.modifiers {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(m)
	}
	return Key(d.Sum64())
}
