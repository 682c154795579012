package asset

import (
	"context"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
)

// Content is the byte content of an asset, or the NotFound marker.
type Content struct {
	bytes []byte
	found bool
}

// NewContent wraps b.
func NewContent(b []byte) Content {
	return Content{bytes: b, found: true}
}

// NewStringContent wraps s.
func NewStringContent(s string) Content {
	return NewContent([]byte(s))
}

// NotFound is the content of an asset whose source does not exist.
func NotFound() Content {
	return Content{}
}

// Found reports whether the content exists.
func (c Content) Found() bool {
	return c.found
}

// Bytes returns the raw bytes. NotFound content has none.
func (c Content) Bytes() []byte {
	return c.bytes
}

func (c Content) String() string {
	return string(c.bytes)
}

// Hash returns the hex blake3 digest of the bytes.
func (c Content) Hash() string {
	sum := blake3.Sum256(c.bytes)
	return hex.EncodeToString(sum[:])
}

// Equal compares two contents by value.
func (c Content) Equal(other Content) bool {
	return c.found == other.found && string(c.bytes) == string(other.bytes)
}

// Source supplies the content of a module.
type Source interface {
	Content(ctx context.Context) (Content, error)
}

// StaticSource is a fixed source.
type StaticSource Content

// Content implements Source.
func (s StaticSource) Content(context.Context) (Content, error) {
	return Content(s), nil
}

// InputSource is a source backed by a memo input. Updating it invalidates
// every computation that read the content.
type InputSource struct {
	input *memo.Input[Content]
}

// NewInputSource registers a source for id with the engine.
func NewInputSource(e *memo.Engine, id ident.AssetIdent, initial Content) *InputSource {
	return &InputSource{input: memo.NewInput(e, memo.NewKey("asset.source", id), initial)}
}

// Content implements Source.
func (s *InputSource) Content(ctx context.Context) (Content, error) {
	return s.input.Get(ctx), nil
}

// Update replaces the content. It reports whether the content changed.
func (s *InputSource) Update(c Content) bool {
	if s.input.Get(context.Background()).Equal(c) {
		return false
	}
	s.input.Set(c)
	return true
}
