package timeline

// NoMarker means no unread marker is set.
const NoMarker = -1

// Cursor is the pagination and unread state of one conversation.
type Cursor struct {
	NextCursor string
	HasMore    bool
	// Loaded is set once the latest page has been applied.
	Loaded bool
	// UnreadMarker is the index of the first unread message, or NoMarker.
	UnreadMarker int
}

// HasMarker reports whether the unread marker is set and points into the timeline.
func (c Cursor) HasMarker(length int) bool {
	return c.UnreadMarker != NoMarker && c.UnreadMarker < length
}

// Cursor returns the pagination state of a conversation.
func (s *Store) Cursor(conversationID string) Cursor {
	if tl, ok := s.timelines[conversationID]; ok {
		return tl.cursor
	}
	return Cursor{UnreadMarker: NoMarker}
}

// SetPagination records the cursor of the next older page.
func (s *Store) SetPagination(conversationID, next string) {
	tl := s.get(conversationID)
	tl.cursor.NextCursor = next
	tl.cursor.HasMore = next != ""
	tl.cursor.Loaded = true
}

// SetUnreadMarker places the marker at index unless one is already set. A
// marker is never placed before the point it was last cleared at, nor past
// the last message.
func (s *Store) SetUnreadMarker(conversationID string, index int) bool {
	tl := s.get(conversationID)
	if tl.cursor.UnreadMarker != NoMarker {
		return false
	}
	if index < 0 {
		index = 0
	}
	if index >= len(tl.messages) {
		return false
	}
	if tl.clearedThrough >= 0 && index < tl.clearedThrough {
		return false
	}
	tl.cursor.UnreadMarker = index
	return true
}

// ClearUnreadMarker removes the marker. Everything currently loaded counts as
// seen from then on.
func (s *Store) ClearUnreadMarker(conversationID string) bool {
	tl, ok := s.timelines[conversationID]
	if !ok || tl.cursor.UnreadMarker == NoMarker {
		return false
	}
	tl.cursor.UnreadMarker = NoMarker
	tl.clearedThrough = len(tl.messages)
	return true
}

// ResetActivation forgets the marker state so the next activation computes it afresh.
func (s *Store) ResetActivation(conversationID string) {
	tl := s.get(conversationID)
	tl.cursor.UnreadMarker = NoMarker
	tl.clearedThrough = -1
}
