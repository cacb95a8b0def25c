package timeline

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msgAt(id string, minute int) types.Message {
	return types.Message{
		ID:             id,
		ConversationID: "c1",
		AuthorID:       "u2",
		Body:           "body " + id,
		CreatedAt:      base.Add(time.Duration(minute) * time.Minute),
		Status:         types.StatusSent,
	}
}

func ids(messages []types.Message) []string {
	out := make([]string, len(messages))
	for i, msg := range messages {
		out[i] = msg.ID
	}
	return out
}

func mustApply(t *testing.T, s *Store, m Mutation) Delta {
	t.Helper()
	delta, err := s.Apply("c1", m)
	if err != nil {
		t.Fatalf("apply %s: %v", m.Kind, err)
	}
	return delta
}

func TestInsertKeepsOrder(t *testing.T) {
	s := NewStore()
	for _, msg := range []types.Message{msgAt("m3", 3), msgAt("m1", 1), msgAt("m2", 2)} {
		mustApply(t, s, Insert(msg))
	}
	got := s.Timeline("c1")
	if fmt.Sprint(ids(got)) != "[m1 m2 m3]" {
		t.Fatalf("unexpected order: %v", ids(got))
	}
	if !Sorted(got) {
		t.Fatal("expected sorted timeline")
	}
}

func TestOrderTieBreaks(t *testing.T) {
	persisted := msgAt("s1", 5)
	provisional := msgAt("pending:a", 5)
	provisional.Provisional = true
	if !Less(persisted, provisional) {
		t.Fatal("expected persisted before provisional at equal time")
	}

	a := msgAt("a", 5)
	a.Seq = 2
	b := msgAt("b", 5)
	b.Seq = 1
	if !Less(b, a) {
		t.Fatal("expected lower seq first")
	}

	p1 := provisional
	p1.LocalSeq = 1
	p2 := provisional
	p2.ID = "pending:b"
	p2.LocalSeq = 2
	if !Less(p1, p2) || Less(p2, p1) {
		t.Fatal("expected insertion order for provisional messages")
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Insert(msgAt("m1", 1)))
	mustApply(t, s, Insert(msgAt("m2", 2)))

	dup := msgAt("m1", 1)
	dup.Body = "edited"
	delta := mustApply(t, s, Insert(dup))

	if delta.Grew() {
		t.Fatal("duplicate insert should not grow the timeline")
	}
	if s.Len("c1") != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Len("c1"))
	}
	got, _ := s.Find("c1", "m1")
	if got.Body != "edited" {
		t.Fatalf("expected replaced body, got %q", got.Body)
	}
}

func TestProvisionalGetsLocalSeq(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"pending:a", "pending:b"} {
		msg := msgAt(id, 1)
		msg.Provisional = true
		msg.Status = types.StatusSending
		mustApply(t, s, Insert(msg))
	}
	got := s.Timeline("c1")
	if got[0].LocalSeq == 0 || got[0].LocalSeq >= got[1].LocalSeq {
		t.Fatalf("unexpected local seqs: %d %d", got[0].LocalSeq, got[1].LocalSeq)
	}
	if fmt.Sprint(ids(got)) != "[pending:a pending:b]" {
		t.Fatalf("unexpected order: %v", ids(got))
	}
}

func TestReplacePromotesProvisional(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Insert(msgAt("m1", 1)))
	provisional := msgAt("pending:t1", 2)
	provisional.Provisional = true
	provisional.Status = types.StatusSending
	provisional.CorrelationToken = "t1"
	mustApply(t, s, Insert(provisional))

	confirmed := msgAt("s1", 2)
	confirmed.CorrelationToken = "t1"
	delta := mustApply(t, s, Replace("pending:t1", confirmed))

	if delta.Len != delta.PrevLen {
		t.Fatalf("promotion changed length: %d -> %d", delta.PrevLen, delta.Len)
	}
	if _, ok := s.Find("c1", "pending:t1"); ok {
		t.Fatal("provisional entry should be gone")
	}
	if fmt.Sprint(ids(s.Timeline("c1"))) != "[m1 s1]" {
		t.Fatalf("unexpected timeline: %v", ids(s.Timeline("c1")))
	}
}

func TestReplaceOntoExistingConfirmedCollapses(t *testing.T) {
	s := NewStore()
	provisional := msgAt("pending:t1", 2)
	provisional.Provisional = true
	mustApply(t, s, Insert(provisional))
	mustApply(t, s, Insert(msgAt("s1", 2)))

	delta := mustApply(t, s, Replace("pending:t1", msgAt("s1", 2)))
	if s.Len("c1") != 1 {
		t.Fatalf("expected a single entry, got %v", ids(s.Timeline("c1")))
	}
	if len(delta.Removed) != 1 || delta.Removed[0] != "pending:t1" {
		t.Fatalf("unexpected removed: %v", delta.Removed)
	}
}

func TestReplaceRepositions(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Insert(msgAt("m1", 1)))
	mustApply(t, s, Insert(msgAt("m2", 2)))
	mustApply(t, s, Insert(msgAt("m3", 3)))

	mustApply(t, s, Replace("m1", msgAt("m1", 9)))
	got := s.Timeline("c1")
	if fmt.Sprint(ids(got)) != "[m2 m3 m1]" || !Sorted(got) {
		t.Fatalf("unexpected order: %v", ids(got))
	}
}

func TestReplaceUnknownIsStale(t *testing.T) {
	s := NewStore()
	_, err := s.Apply("c1", Replace("missing", msgAt("x", 1)))
	if !errors.Is(err, core.ErrStaleEvent) {
		t.Fatalf("expected stale error, got %v", err)
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Insert(msgAt("m1", 1)))
	delta := mustApply(t, s, Remove("nope"))
	if delta.Changed() || s.Len("c1") != 1 {
		t.Fatal("expected no change")
	}
}

func TestPrependPage(t *testing.T) {
	tests := []struct {
		name    string
		page    []types.Message
		wantErr bool
		want    string
	}{
		{
			name: "strictly older",
			page: []types.Message{msgAt("o2", -2), msgAt("o1", -3)},
			want: "[o1 o2 m1 m2]",
		},
		{
			name: "empty page",
			page: nil,
			want: "[m1 m2]",
		},
		{
			name:    "overlapping page",
			page:    []types.Message{msgAt("o1", -1), msgAt("x", 1)},
			wantErr: true,
			want:    "[m1 m2]",
		},
		{
			name:    "duplicate id",
			page:    []types.Message{msgAt("m1", 0)},
			wantErr: true,
			want:    "[m1 m2]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			mustApply(t, s, Insert(msgAt("m1", 1)))
			mustApply(t, s, Insert(msgAt("m2", 2)))

			_, err := s.Apply("c1", PrependPage(tc.page))
			if tc.wantErr {
				if !errors.Is(err, core.ErrOutOfOrderPage) {
					t.Fatalf("expected out of order error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("prepend: %v", err)
			}
			if got := fmt.Sprint(ids(s.Timeline("c1"))); got != tc.want {
				t.Fatalf("timeline = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPrependOutOfOrderScenario(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("e", 10), msgAt("f", 11)}))
	before := ids(s.Timeline("c1"))

	_, err := s.Apply("c1", PrependPage([]types.Message{msgAt("d", 9), msgAt("g", 12)}))
	if err == nil || err.Error() == "" {
		t.Fatal("expected error")
	}
	if !errors.Is(err, core.ErrOutOfOrderPage) {
		t.Fatalf("expected OUT_OF_ORDER_PAGE, got %v", err)
	}
	if fmt.Sprint(ids(s.Timeline("c1"))) != fmt.Sprint(before) {
		t.Fatal("timeline changed after rejected page")
	}
}

func TestPatches(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Insert(msgAt("m1", 1)))

	mustApply(t, s, PatchReactions("m1", []types.Reaction{{Label: "👍", Count: 2}}))
	mustApply(t, s, PatchPin("m1", true))

	got, _ := s.Find("c1", "m1")
	if len(got.Reactions) != 1 || got.Reactions[0].Count != 2 {
		t.Fatalf("unexpected reactions: %+v", got.Reactions)
	}
	if !got.Pinned {
		t.Fatal("expected pinned")
	}

	if _, err := s.Apply("c1", PatchPin("gone", true)); !errors.Is(err, core.ErrStaleEvent) {
		t.Fatalf("expected stale error, got %v", err)
	}
}

func TestResetKeepsUnconfirmedProvisional(t *testing.T) {
	s := NewStore()
	keep := msgAt("pending:keep", 5)
	keep.Provisional = true
	keep.CorrelationToken = "keep"
	drop := msgAt("pending:drop", 5)
	drop.Provisional = true
	drop.CorrelationToken = "drop"
	mustApply(t, s, Insert(keep))
	mustApply(t, s, Insert(drop))

	confirmed := msgAt("s1", 4)
	confirmed.CorrelationToken = "drop"
	delta := mustApply(t, s, Reset([]types.Message{msgAt("m1", 1), confirmed}))

	if got := fmt.Sprint(ids(s.Timeline("c1"))); got != "[m1 s1 pending:keep]" {
		t.Fatalf("unexpected timeline: %s", got)
	}
	if !delta.Reset {
		t.Fatal("expected reset delta")
	}
}

func TestUnreadMarkerShiftsOnPrepend(t *testing.T) {
	s := NewStore()
	var page []types.Message
	for i := 0; i < 10; i++ {
		page = append(page, msgAt(fmt.Sprintf("m%02d", i), i))
	}
	mustApply(t, s, Reset(page))
	if !s.SetUnreadMarker("c1", 7) {
		t.Fatal("expected marker to be set")
	}
	if s.SetUnreadMarker("c1", 3) {
		t.Fatal("marker should only be set once")
	}

	mustApply(t, s, PrependPage([]types.Message{msgAt("o1", -2), msgAt("o2", -1)}))
	if got := s.Cursor("c1").UnreadMarker; got != 9 {
		t.Fatalf("marker = %d, want 9", got)
	}
	marked := s.Timeline("c1")[9]
	if marked.ID != "m07" {
		t.Fatalf("marker moved to %s", marked.ID)
	}

	mustApply(t, s, Remove("m00"))
	if got := s.Cursor("c1").UnreadMarker; got != 8 {
		t.Fatalf("marker = %d after remove, want 8", got)
	}
}

func TestUnreadMarkerClearingIsMonotonic(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("m1", 1), msgAt("m2", 2), msgAt("m3", 3)}))
	s.SetUnreadMarker("c1", 1)
	if !s.ClearUnreadMarker("c1") {
		t.Fatal("expected clear")
	}
	if s.ClearUnreadMarker("c1") {
		t.Fatal("second clear should be a no-op")
	}
	if s.SetUnreadMarker("c1", 2) {
		t.Fatal("marker must not reappear before the cleared point")
	}

	mustApply(t, s, Insert(msgAt("m4", 4)))
	if !s.SetUnreadMarker("c1", 3) {
		t.Fatal("expected marker at the new message")
	}

	s.ResetActivation("c1")
	if s.Cursor("c1").UnreadMarker != NoMarker {
		t.Fatal("expected marker reset")
	}
	if !s.SetUnreadMarker("c1", 0) {
		t.Fatal("expected marker after reactivation")
	}
}

func TestPagination(t *testing.T) {
	s := NewStore()
	if s.Cursor("c1").Loaded {
		t.Fatal("expected unloaded cursor")
	}
	s.SetPagination("c1", "cur-1")
	c := s.Cursor("c1")
	if !c.Loaded || !c.HasMore || c.NextCursor != "cur-1" {
		t.Fatalf("unexpected cursor: %+v", c)
	}
	s.SetPagination("c1", "")
	if s.Cursor("c1").HasMore {
		t.Fatal("expected no more pages")
	}
}

func TestResetRebasesClearedPoint(t *testing.T) {
	s := NewStore()
	var latest []types.Message
	for i := 0; i < 20; i++ {
		msg := msgAt(fmt.Sprintf("m%02d", i), 100+i)
		latest = append(latest, msg)
		mustApply(t, s, Insert(msg))
	}
	var older []types.Message
	for i := 0; i < 30; i++ {
		older = append(older, msgAt(fmt.Sprintf("o%02d", i), i))
	}
	mustApply(t, s, PrependPage(older))
	s.SetUnreadMarker("c1", 40)
	s.ClearUnreadMarker("c1")

	mustApply(t, s, Reset(latest))
	if got := s.Len("c1"); got != 20 {
		t.Fatalf("len after reset = %d, want 20", got)
	}
	if s.SetUnreadMarker("c1", 19) {
		t.Fatal("marker must stay behind the cleared point")
	}
	mustApply(t, s, Insert(msgAt("n1", 200)))
	if !s.SetUnreadMarker("c1", 20) {
		t.Fatal("expected marker at the first message after the refresh")
	}
}

func TestResetMovesMarkerWithItsMessage(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("m1", 1), msgAt("m2", 2), msgAt("m3", 3)}))
	s.SetUnreadMarker("c1", 2)

	mustApply(t, s, Reset([]types.Message{msgAt("m2", 2), msgAt("m3", 3), msgAt("m4", 4)}))
	if got := s.Cursor("c1").UnreadMarker; got != 1 {
		t.Fatalf("marker = %d, want 1", got)
	}

	mustApply(t, s, Reset([]types.Message{msgAt("m1", 1)}))
	if got := s.Cursor("c1").UnreadMarker; got != NoMarker {
		t.Fatalf("marker past the end should be dropped, got %d", got)
	}
}

func TestMarkerPastEndIsNone(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("m1", 1), msgAt("m2", 2)}))
	if s.SetUnreadMarker("c1", 2) {
		t.Fatal("marker at the end marks nothing")
	}
	if !s.SetUnreadMarker("c1", 1) {
		t.Fatal("expected marker on the last message")
	}
	mustApply(t, s, Remove("m2"))
	if got := s.Cursor("c1"); got.UnreadMarker != NoMarker || got.HasMarker(s.Len("c1")) {
		t.Fatalf("marker should go with the last message, got %+v", got)
	}
}

func TestResetKeepsLoadedHistoryOnOverlap(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("m1", 10), msgAt("m2", 11), msgAt("m3", 12)}))
	s.SetPagination("c1", "p2")
	mustApply(t, s, PrependPage([]types.Message{msgAt("o1", 1), msgAt("o2", 2)}))
	s.SetPagination("c1", "p3")

	delta := mustApply(t, s, Reset([]types.Message{msgAt("m2", 11), msgAt("m3", 12), msgAt("m4", 13)}))
	if got := fmt.Sprint(ids(s.Timeline("c1"))); got != "[o1 o2 m1 m2 m3 m4]" {
		t.Fatalf("unexpected timeline: %s", got)
	}
	if delta.Retained != 3 || delta.Restarted {
		t.Fatalf("unexpected delta: %+v", delta)
	}
	if len(delta.Added) != 1 || delta.Added[0].ID != "m4" {
		t.Fatalf("added: %v", ids(delta.Added))
	}
}

func TestResetWithoutOverlapRestarts(t *testing.T) {
	s := NewStore()
	mustApply(t, s, Reset([]types.Message{msgAt("m1", 1), msgAt("m2", 2)}))
	s.SetPagination("c1", "p2")

	delta := mustApply(t, s, Reset([]types.Message{msgAt("m8", 8), msgAt("m9", 9)}))
	if got := fmt.Sprint(ids(s.Timeline("c1"))); got != "[m8 m9]" {
		t.Fatalf("unexpected timeline: %s", got)
	}
	if !delta.Restarted || delta.Retained != 0 || len(delta.Removed) != 2 {
		t.Fatalf("unexpected delta: %+v", delta)
	}
}

func TestOrderHoldsUnderRandomMutations(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			s := NewStore()
			next := 0
			fresh := func(prefix string) string {
				next++
				return fmt.Sprintf("%s%03d", prefix, next)
			}
			for step := 0; step < 300; step++ {
				timeline := s.Timeline("c1")
				var op string
				switch rng.Intn(9) {
				case 0, 1:
					op = "insert"
					mustApply(t, s, Insert(msgAt(fresh("m"), 1000+rng.Intn(200))))
				case 2:
					op = "send"
					token := fresh("t")
					msg := msgAt("pending:"+token, 1000+rng.Intn(200))
					msg.Provisional = true
					msg.CorrelationToken = token
					mustApply(t, s, Insert(msg))
				case 3:
					op = "confirm"
					for _, msg := range timeline {
						if !msg.Provisional {
							continue
						}
						confirmed := msgAt(fresh("s"), 1000+rng.Intn(200))
						confirmed.CorrelationToken = msg.CorrelationToken
						mustApply(t, s, Replace(msg.ID, confirmed))
						break
					}
				case 4:
					op = "edit"
					if len(timeline) > 0 {
						msg := timeline[rng.Intn(len(timeline))]
						msg.CreatedAt = msg.CreatedAt.Add(time.Duration(rng.Intn(61)-30) * time.Minute)
						mustApply(t, s, Replace(msg.ID, msg))
					}
				case 5:
					op = "remove"
					if len(timeline) > 0 {
						mustApply(t, s, Remove(timeline[rng.Intn(len(timeline))].ID))
					}
				case 6:
					op = "prepend"
					earliest := base.Add(1000 * time.Minute)
					if len(timeline) > 0 {
						earliest = timeline[0].CreatedAt
					}
					var page []types.Message
					for i := 1 + rng.Intn(4); i > 0; i-- {
						msg := msgAt(fresh("o"), 0)
						msg.CreatedAt = earliest.Add(-time.Duration(i+rng.Intn(3)) * time.Minute)
						page = append(page, msg)
					}
					mustApply(t, s, PrependPage(page))
				case 7:
					op = "reset"
					if rng.Intn(2) == 0 {
						s.SetPagination("c1", "p")
					}
					var page []types.Message
					for _, msg := range timeline {
						if !msg.Provisional && rng.Intn(3) > 0 {
							page = append(page, msg)
						}
					}
					for i := rng.Intn(3); i > 0; i-- {
						page = append(page, msgAt(fresh("m"), 1000+rng.Intn(260)))
					}
					mustApply(t, s, Reset(page))
				case 8:
					op = "marker"
					if rng.Intn(2) == 0 {
						s.SetUnreadMarker("c1", rng.Intn(len(timeline)+2))
					} else {
						s.ClearUnreadMarker("c1")
					}
				}

				got := s.Timeline("c1")
				if !Sorted(got) {
					t.Fatalf("step %d (%s): timeline out of order: %v", step, op, ids(got))
				}
				seen := make(map[string]bool, len(got))
				for _, msg := range got {
					if seen[msg.ID] {
						t.Fatalf("step %d (%s): duplicate %s", step, op, msg.ID)
					}
					seen[msg.ID] = true
				}
				if marker := s.Cursor("c1").UnreadMarker; marker != NoMarker && (marker < 0 || marker >= len(got)) {
					t.Fatalf("step %d (%s): marker %d outside timeline of %d", step, op, marker, len(got))
				}
			}
		})
	}
}
