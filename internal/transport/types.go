package transport

import "context"

// ChatTarget identifies a destination chat.
type ChatTarget struct {
	ChatID int64
}

// Attachment describes one stored file scheduled to be sent with a message.
type Attachment struct {
	FilePath     string `json:"file_path"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
	IsImage      bool   `json:"is_image"`
}

// Sender is the outbound capability consumed by the schedulers.
//
// Both methods retry transient failures a bounded number of times before
// returning; permission and not-found errors are returned immediately.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string) error
	// SendWithAttachments delivers text plus files. Attachments are sent
	// in batches of at most MaxAttachmentsPerMessage; text longer than
	// MaxTextLen is split on word boundaries across messages.
	SendWithAttachments(ctx context.Context, to ChatTarget, text string, atts []Attachment) error
}

// Notifier reports user-visible outcomes back to the control surface
// (delivery confirmations and failures, not just log lines).
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, text string)

func (f NotifierFunc) Notify(ctx context.Context, text string) { f(ctx, text) }
