package types

import (
	"encoding/json"
	"testing"
)

func TestEventValidate(t *testing.T) {
	pinned := true
	tests := []struct {
		name      string
		event     Event
		malformed bool
	}{
		{"unknown type", Event{Type: "bogus", ConversationID: "c1"}, true},
		{"missing conversation", Event{Type: EventMessageDelete, MessageID: "m1"}, true},
		{"new without message", Event{Type: EventMessageNew, ConversationID: "c1"}, true},
		{"new with mismatched conversation", Event{Type: EventMessageNew, ConversationID: "c1", Message: &Message{ID: "m1", ConversationID: "c2"}}, true},
		{"new", Event{Type: EventMessageNew, ConversationID: "c1", Message: &Message{ID: "m1"}}, false},
		{"pin without state", Event{Type: EventPinUpdate, ConversationID: "c1", MessageID: "m1"}, true},
		{"pin", Event{Type: EventPinUpdate, ConversationID: "c1", MessageID: "m1", Pinned: &pinned}, false},
		{"read without reader", Event{Type: EventMessageRead, ConversationID: "c1", LastReadMessageID: "m1"}, true},
		{"typing", Event{Type: EventTypingStart, ConversationID: "c1", UserID: "u1"}, false},
		{"presence without conversation", Event{Type: EventPresenceUpdate, UserID: "u1", Presence: "online"}, false},
		{"conversation update", Event{Type: EventConversationUpdate, ConversationID: "c1"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.malformed {
				if !IsMalformed(err) {
					t.Fatalf("expected malformed error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEventDecode(t *testing.T) {
	raw := `{"type":"message:new","conversationId":"c1","message":{"id":"m1","conversationId":"c1","senderId":"u2","body":"hi","createdAt":"2026-03-01T12:00:00Z","clientMessageId":"tok"}}`
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if event.Message.AuthorID != "u2" || event.Message.CorrelationToken != "tok" {
		t.Fatalf("unexpected message: %+v", event.Message)
	}
}

func TestDeliveryStatusRank(t *testing.T) {
	order := []DeliveryStatus{StatusSending, StatusSent, StatusDelivered, StatusRead}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Fatalf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if StatusFailed.Rank() != 0 || !StatusFailed.Pending() || StatusSent.Pending() {
		t.Fatal("unexpected failed status semantics")
	}
}

func TestMemberLabel(t *testing.T) {
	if got := (Member{FullName: "  Ana Lopes "}).Label(); got != "Ana Lopes" {
		t.Fatalf("label = %q", got)
	}
	if got := (Member{Username: "ana"}).Label(); got != "@ana" {
		t.Fatalf("label = %q", got)
	}
	if got := (Member{}).Label(); got != "Member" {
		t.Fatalf("label = %q", got)
	}
}
