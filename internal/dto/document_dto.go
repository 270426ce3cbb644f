package dto

import "time"

// IngestChunkRequest is the structured form of a chunk body. Bodies that are
// not a JSON object are treated as raw content.
type IngestChunkRequest struct {
	Content string `json:"content"`
	IsFinal bool   `json:"is_final"`
}

type IngestChunkResponse struct {
	Filename    string
	BlocksAdded int
	TotalBlocks int
	IsFinal     bool

	// Set only for the final chunk.
	Path     string
	Artifact []byte
}

type SessionStatusResponse struct {
	SessionKey string     `json:"session_key"`
	State      string     `json:"state"`
	Filename   string     `json:"filename,omitempty"`
	Blocks     int        `json:"blocks"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// ArtifactFinalizedMessage is published in-process once a document is
// finalized, for side effects that must not block the request.
type ArtifactFinalizedMessage struct {
	SessionKey string `json:"session_key"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
}
