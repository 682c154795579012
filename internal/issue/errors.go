package issue

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/vpath"
)

// ConfigError reports a path that does not lie inside its declared root.
type ConfigError struct {
	What string
	Path vpath.Path
	Root vpath.Path
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s is not inside %s", e.What, e.Path, e.Root)
}

// NewConfigError creates a ConfigError.
func NewConfigError(what string, path, root vpath.Path) *ConfigError {
	return &ConfigError{What: what, Path: path, Root: root}
}

// GraphShapeError reports an asset that cannot be placed where the graph
// requires it.
type GraphShapeError struct {
	Ident  ident.AssetIdent
	Reason string
}

func (e *GraphShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Ident, e.Reason)
}

// NewGraphShapeError creates a GraphShapeError.
func NewGraphShapeError(id ident.AssetIdent, reason string) *GraphShapeError {
	return &GraphShapeError{Ident: id, Reason: reason}
}

// FromError converts an error into an issue, keeping the typed errors'
// attribution.
func FromError(err error) Issue {
	var cfgErr *ConfigError
	var shapeErr *GraphShapeError
	var iss Issue

	switch {
	case errors.As(err, &iss):
		return iss
	case errors.As(err, &cfgErr):
		return Issue{
			Severity:    SeverityError,
			Category:    CategoryConfig,
			Context:     cfgErr.Path.String(),
			Title:       fmt.Sprintf("%s outside of %s", cfgErr.What, cfgErr.Root),
			Description: err.Error(),
		}
	case errors.As(err, &shapeErr):
		return Issue{
			Severity:    SeverityError,
			Category:    CategoryGraph,
			Context:     shapeErr.Ident.Path().String(),
			Title:       shapeErr.Reason,
			Description: err.Error(),
		}
	}
	return Issue{
		Severity: SeverityFatal,
		Title:    err.Error(),
	}
}
