package orchestrator

import "time"

// WorkspaceID identifies an independent scene timeline. Each workspace grows
// exactly one cumulative script, one round at a time.
type WorkspaceID string

// Round is one unit of work: a user request, the full script after merging the
// generated fragment, and the media file that plays just this round's part.
// Script and MediaPath stay empty until the round's worker succeeds.
type Round struct {
	ID        int64       `json:"id"`
	Workspace WorkspaceID `json:"workspace"`

	// Index is zero-based and gap-free within a workspace; assignment is
	// atomic per workspace in the repository.
	Index int `json:"index"`

	Request string `json:"request"`

	// Script is the full cumulative scene script after this round. It is a
	// snapshot: later rounds read it but never modify it.
	Script string `json:"script,omitempty"`

	// MediaPath is the resolved playable file for this round. Empty when
	// resolution failed even though the script rendered.
	MediaPath string `json:"media_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
