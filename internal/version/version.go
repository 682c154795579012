// Package version models versioned content: content that can describe its
// current version and compute an update from an older version.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/pack/internal/asset"
)

// Version identifies a state of some content.
type Version interface {
	ID() string
}

// IDVersion is an opaque version.
type IDVersion string

// ID implements Version.
func (v IDVersion) ID() string {
	return string(v)
}

// MapVersion is a version made of named entry versions. Two map versions
// with the same entries have the same ID.
type MapVersion map[string]string

// ID implements Version.
func (v MapVersion) ID() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(v[k])
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Equal reports whether two versions have the same ID. A nil version only
// equals another nil version.
func Equal(a, b Version) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// Content is content with a version.
type Content interface {
	Content(ctx context.Context) (asset.Content, error)
	Version(ctx context.Context) (Version, error)
	// Update computes the update bringing a client holding from to the
	// current version. from may be nil when the client holds nothing.
	Update(ctx context.Context, from Version) (Update, error)
}

// Mergeable is content that is merged with other content sharing the same
// merger before versions are computed.
type Mergeable interface {
	Content
	Merger() Merger
}

// Merger combines mergeable contents.
type Merger interface {
	Key() string
	Merge(ctx context.Context, contents []Content) (Content, error)
}

// Provider is implemented by assets with their own versioned content.
type Provider interface {
	VersionedContent(ctx context.Context) (Content, error)
}

// Of returns the versioned content of a, falling back to a content hash.
func Of(ctx context.Context, a asset.Asset) (Content, error) {
	if p, ok := a.(Provider); ok {
		return p.VersionedContent(ctx)
	}
	return NewFileContent(a), nil
}

// UpdateKind describes how much of a content a client has to replace.
type UpdateKind int

const (
	UpdateNone UpdateKind = iota
	UpdateTotal
	UpdatePartial
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateTotal:
		return "total"
	case UpdatePartial:
		return "partial"
	default:
		return "none"
	}
}

// Update brings a client to version To.
type Update struct {
	Kind        UpdateKind
	To          Version
	Instruction any
}

// NoUpdate means the client is current.
func NoUpdate() Update {
	return Update{Kind: UpdateNone}
}

// TotalUpdate means the client must reload the content.
func TotalUpdate(to Version) Update {
	return Update{Kind: UpdateTotal, To: to}
}

// PartialUpdate carries an instruction the client applies in place.
func PartialUpdate(to Version, instruction any) Update {
	return Update{Kind: UpdatePartial, To: to, Instruction: instruction}
}

type wireUpdate struct {
	Type        string `json:"type"`
	To          string `json:"to,omitempty"`
	Instruction any    `json:"instruction,omitempty"`
}

// MarshalJSON renders the update for clients.
func (u Update) MarshalJSON() ([]byte, error) {
	w := wireUpdate{Type: u.Kind.String(), Instruction: u.Instruction}
	if u.To != nil {
		w.To = u.To.ID()
	}
	return json.Marshal(w)
}

const notFoundVersion IDVersion = "not-found"

// FileContent versions an asset by the hash of its content.
type FileContent struct {
	asset asset.Asset
}

// NewFileContent wraps a.
func NewFileContent(a asset.Asset) *FileContent {
	return &FileContent{asset: a}
}

// Content implements Content.
func (f *FileContent) Content(ctx context.Context) (asset.Content, error) {
	return f.asset.Content(ctx)
}

// Version implements Content.
func (f *FileContent) Version(ctx context.Context) (Version, error) {
	c, err := f.asset.Content(ctx)
	if err != nil {
		return nil, err
	}
	if !c.Found() {
		return notFoundVersion, nil
	}
	return IDVersion(c.Hash()), nil
}

// Update implements Content.
func (f *FileContent) Update(ctx context.Context, from Version) (Update, error) {
	to, err := f.Version(ctx)
	if err != nil {
		return Update{}, err
	}
	if Equal(from, to) {
		return NoUpdate(), nil
	}
	return TotalUpdate(to), nil
}
