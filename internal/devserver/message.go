package devserver

import (
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/version"
)

// Message types exchanged on the update socket.
const (
	// Client to server
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"

	// Server to client
	TypeSession = "session"
	TypeUpdate  = "update"
	TypeIssues  = "issues"
	TypeError   = "error"
)

// Message is a frame on the update socket. Path is a chunk list path
// relative to the output root.
type Message struct {
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	Path    string          `json:"path,omitempty"`
	Update  *version.Update `json:"update,omitempty"`
	Issues  []issue.Issue   `json:"issues,omitempty"`
	Error   string          `json:"error,omitempty"`
}
