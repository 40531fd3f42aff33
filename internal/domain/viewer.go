// Package domain contains entity without logic, just meta-data
package domain

import (
	"time"

	"github.com/google/uuid"
)

type ViewerID string

// ViewerKind tells how a viewer is attached.
type ViewerKind string

const (
	ViewerWebSocket ViewerKind = "ws"
	ViewerSSE       ViewerKind = "sse"
)

// ViewerInfo is a read-only view of a registered viewer (no transport fields).
type ViewerInfo struct {
	ID          ViewerID   `json:"id"`
	Kind        ViewerKind `json:"kind"`
	ConnectedAt time.Time  `json:"connected_at"`
}

// NewViewerID is a tiny helper to avoid ad-hoc uuid calls in adapters.
func NewViewerID() ViewerID {
	return ViewerID(uuid.NewString())
}
