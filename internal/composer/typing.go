package composer

import (
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// DefaultTypingIdle is how long after the last keystroke typing:stop is sent.
const DefaultTypingIdle = 1400 * time.Millisecond

// typingDebouncer emits one typing:start per burst and exactly one
// typing:stop when the burst ends. The idle timer itself lives with the
// caller; each keystroke returns a sequence number and only an expiry
// carrying the latest one counts.
type typingDebouncer struct {
	conversationID string
	active         bool
	seq            uint64
}

// keystroke records activity. start is set on the first keystroke of a burst.
func (d *typingDebouncer) keystroke(conversationID string) (start *types.TypingSignal, seq uint64) {
	d.seq++
	if d.active && d.conversationID == conversationID {
		return nil, d.seq
	}
	d.conversationID = conversationID
	d.active = true
	return &types.TypingSignal{ConversationID: conversationID, Kind: types.TypingStart}, d.seq
}

// expire handles the idle timer firing for seq.
func (d *typingDebouncer) expire(seq uint64) *types.TypingSignal {
	if seq != d.seq {
		return nil
	}
	return d.flush()
}

// flush ends the burst now, if one is running.
func (d *typingDebouncer) flush() *types.TypingSignal {
	d.seq++
	if !d.active {
		return nil
	}
	d.active = false
	return &types.TypingSignal{ConversationID: d.conversationID, Kind: types.TypingStop}
}
