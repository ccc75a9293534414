// Package delayed implements one-shot scheduled messages: a persistent
// store of pending records, a per-message wait task that fires once and
// self-removes, and crash recovery on startup.
package delayed

import (
	"context"
	"time"

	"markbot/internal/transport"
)

// Message is a one-shot scheduled send, independent of the recurring
// window. Owned by the Store; persisted on every mutation.
type Message struct {
	ID          int                    `json:"id"`
	Text        string                 `json:"text"`
	FireAt      time.Time              `json:"fire_at"`
	CreatedAt   time.Time              `json:"created_at"`
	Attachments []transport.Attachment `json:"attachments,omitempty"`
}

// fileData is the on-disk layout: records keyed by id plus the id
// counter. Go marshals the int-keyed map with string keys, matching
// the historical file format.
type fileData struct {
	NextID   int             `json:"next_id"`
	Messages map[int]Message `json:"messages"`
}

// Recorder receives fire outcomes, best-effort.
type Recorder interface {
	RecordSend(ctx context.Context, kind string, at time.Time, ok bool, detail string)
}
