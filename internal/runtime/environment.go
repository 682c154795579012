// Package runtime describes the execution environment of emitted chunks and
// provides the bootstrap code that registers and loads them.
package runtime

import (
	"fmt"
	"strings"
)

// ChunkLoading is the mechanism the runtime uses to load additional chunks.
type ChunkLoading int

const (
	ChunkLoadingNone ChunkLoading = iota
	ChunkLoadingNode
	ChunkLoadingDOM
)

func (c ChunkLoading) String() string {
	switch c {
	case ChunkLoadingNode:
		return "node"
	case ChunkLoadingDOM:
		return "dom"
	default:
		return "none"
	}
}

// ParseChunkLoading parses the configuration form of a chunk loading kind.
func ParseChunkLoading(s string) (ChunkLoading, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ChunkLoadingNone, nil
	case "node", "nodejs":
		return ChunkLoadingNode, nil
	case "dom", "browser":
		return ChunkLoadingDOM, nil
	}
	return ChunkLoadingNone, fmt.Errorf("unknown chunk loading %q (expected none, node or dom)", s)
}

// Environment describes where emitted code runs.
type Environment struct {
	ChunkLoading ChunkLoading
}

// NodeEnvironment is the environment of server side builds.
func NodeEnvironment() Environment {
	return Environment{ChunkLoading: ChunkLoadingNode}
}

// BrowserEnvironment loads chunks with script tags.
func BrowserEnvironment() Environment {
	return Environment{ChunkLoading: ChunkLoadingDOM}
}

// Fingerprint implements the memo key contract.
func (e Environment) Fingerprint() string {
	return "env:" + e.ChunkLoading.String()
}

// Type selects the runtime included in evaluation chunks.
type Type int

const (
	// TypeDefault includes the full runtime.
	TypeDefault Type = iota
	// TypeDummy replaces the runtime with a placeholder. Used by tests and
	// snapshot tooling that does not care about runtime code.
	TypeDummy
)

func (t Type) String() string {
	if t == TypeDummy {
		return "dummy"
	}
	return "default"
}

// ParseType parses the configuration form of a runtime type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return TypeDefault, nil
	case "dummy":
		return TypeDummy, nil
	}
	return TypeDefault, fmt.Errorf("unknown runtime type %q (expected default or dummy)", s)
}
