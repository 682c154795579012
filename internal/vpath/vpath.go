// Package vpath implements slash separated paths inside the virtual project
// filesystem. Every path is absolute and clean.
package vpath

import (
	"path"
	"strings"
)

// Path is an absolute, cleaned, slash separated path.
type Path string

// Root is the root of the virtual filesystem.
const Root Path = "/"

// New cleans p and anchors it at the root.
func New(p string) Path {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return Path(path.Clean(p))
}

func (p Path) String() string {
	return string(p)
}

// IsRoot reports whether p is the filesystem root.
func (p Path) IsRoot() bool {
	return p == Root || p == ""
}

// Join appends elements to p. Elements may contain slashes.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{string(p)}, elem...)
	return New(path.Join(parts...))
}

// Parent returns the directory containing p. The parent of the root is the root.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	return Path(path.Dir(string(p)))
}

// FileName returns the last element of p, or "" for the root.
func (p Path) FileName() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(string(p))
}

// Extension returns the file extension without the leading dot.
// Dot files such as ".env" have no extension.
func (p Path) Extension() (string, bool) {
	name := p.FileName()
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return "", false
	}
	return name[idx+1:], true
}

// Stem returns the file name without its extension.
func (p Path) Stem() string {
	name := p.FileName()
	if ext, ok := p.Extension(); ok {
		return strings.TrimSuffix(name, "."+ext)
	}
	return name
}

// PathTo returns the relative path from p to target when target is p itself
// or lies below it. The relative path of p to itself is "".
func (p Path) PathTo(target Path) (string, bool) {
	if p == target {
		return "", true
	}
	prefix := string(p)
	if !p.IsRoot() {
		prefix += "/"
	}
	if !strings.HasPrefix(string(target), prefix) {
		return "", false
	}
	return strings.TrimPrefix(string(target), prefix), true
}

// IsInside reports whether p equals dir or lies below it.
func (p Path) IsInside(dir Path) bool {
	_, ok := dir.PathTo(p)
	return ok
}
