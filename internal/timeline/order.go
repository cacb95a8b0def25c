package timeline

import (
	"sort"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// Less is the timeline order: creation time, then persisted before provisional,
// then server sequence and id for persisted messages, or insertion order for
// provisional ones.
func Less(a, b types.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Provisional != b.Provisional {
		return !a.Provisional
	}
	if a.Provisional {
		return a.LocalSeq < b.LocalSeq
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}

// Sorted reports whether messages is non-decreasing in timeline order.
func Sorted(messages []types.Message) bool {
	for i := 1; i < len(messages); i++ {
		if Less(messages[i], messages[i-1]) {
			return false
		}
	}
	return true
}

func sortMessages(messages []types.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// insertPosition returns the index at which msg keeps messages ordered. Equal
// keys land after existing entries.
func insertPosition(messages []types.Message, msg types.Message) int {
	return sort.Search(len(messages), func(i int) bool {
		return Less(msg, messages[i])
	})
}

// fitsAt reports whether msg can occupy index i without breaking order.
func fitsAt(messages []types.Message, i int, msg types.Message) bool {
	if i > 0 && Less(msg, messages[i-1]) {
		return false
	}
	if i < len(messages)-1 && Less(messages[i+1], msg) {
		return false
	}
	return true
}
