package transport

import "strings"

const (
	// MaxTextLen is the per-message text ceiling in runes.
	MaxTextLen = 2000
	// MaxAttachmentsPerMessage is the platform album size limit.
	MaxAttachmentsPerMessage = 10
)

// SplitText splits s into chunks of at most limit runes, breaking on
// word boundaries. It never emits an empty chunk. A single word longer
// than the limit is hard-split as a last resort so the ceiling holds.
func SplitText(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxTextLen
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunk := strings.TrimSpace(string(cur))
		if chunk != "" {
			out = append(out, chunk)
		}
		cur = cur[:0]
	}

	for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\n' }) {
		wr := []rune(word)
		if len(wr) > limit {
			// Oversized token: flush what we have, then hard-split it.
			flush()
			for len(wr) > limit {
				out = append(out, string(wr[:limit]))
				wr = wr[limit:]
			}
			cur = append(cur, wr...)
			cur = append(cur, ' ')
			continue
		}
		if len(cur)+len(wr) > limit {
			flush()
		}
		cur = append(cur, wr...)
		cur = append(cur, ' ')
	}
	flush()

	if len(out) == 0 {
		return []string{s}
	}
	return out
}

// BatchAttachments chunks atts into groups of at most perMessage items,
// preserving order.
func BatchAttachments(atts []Attachment, perMessage int) [][]Attachment {
	if perMessage <= 0 {
		perMessage = MaxAttachmentsPerMessage
	}
	if len(atts) == 0 {
		return nil
	}
	groups := make([][]Attachment, 0, (len(atts)+perMessage-1)/perMessage)
	for i := 0; i < len(atts); i += perMessage {
		end := i + perMessage
		if end > len(atts) {
			end = len(atts)
		}
		groups = append(groups, atts[i:end])
	}
	return groups
}
