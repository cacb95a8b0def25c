package reconcile

import (
	"errors"
	"slices"
	"strings"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/timeline"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// Draft is what the composer hands over on send.
type Draft struct {
	ConversationID string
	Body           string
	ReplyTo        *types.ReplyRef
	Attachments    []types.Attachment
}

// BeginSend inserts a provisional message with status sending and a fresh
// correlation token. The returned message carries the token for the send request.
func (r *Reconciler) BeginSend(draft Draft) (types.Message, timeline.Delta, error) {
	body := strings.TrimSpace(draft.Body)
	if body == "" && len(draft.Attachments) == 0 {
		return types.Message{}, timeline.Delta{}, core.Validation("send", "message body is empty")
	}
	if draft.ConversationID == "" {
		return types.Message{}, timeline.Delta{}, core.Validation("send", "no conversation selected")
	}

	token := core.NewCorrelationToken()
	msg := types.Message{
		ID:               core.ProvisionalID(token),
		ConversationID:   draft.ConversationID,
		AuthorID:         r.viewerID,
		Body:             body,
		CreatedAt:        r.now(),
		Kind:             types.MessageKindText,
		Status:           types.StatusSending,
		ReplyTo:          draft.ReplyTo,
		Attachments:      slices.Clone(draft.Attachments),
		CorrelationToken: token,
		Provisional:      true,
	}
	delta, err := r.store.Apply(draft.ConversationID, timeline.Insert(msg))
	if err != nil {
		return types.Message{}, delta, err
	}
	inserted, _ := r.store.Find(draft.ConversationID, msg.ID)
	return inserted, delta, nil
}

// ConfirmSend applies the send response. Whichever of the response and the
// stream echo arrives first promotes the provisional message; the other
// merges into the confirmed copy.
func (r *Reconciler) ConfirmSend(conversationID, token string, confirmed types.Message) (timeline.Delta, error) {
	confirmed = normalize(conversationID, []types.Message{confirmed})[0]
	if confirmed.CorrelationToken == "" {
		confirmed.CorrelationToken = token
	}
	if provisional, ok := r.store.FindByToken(conversationID, token); ok {
		return r.promote(conversationID, provisional, confirmed)
	}
	if existing, ok := r.store.Find(conversationID, confirmed.ID); ok {
		return r.store.Apply(conversationID, timeline.Replace(confirmed.ID, merge(existing, confirmed)))
	}
	// The provisional entry was retracted in the meantime; the server still
	// stored the message, so show it.
	return r.store.Apply(conversationID, timeline.Insert(confirmed))
}

// promote replaces a provisional message with its confirmed copy. The
// provisional position and timeline length are kept.
func (r *Reconciler) promote(conversationID string, provisional, confirmed types.Message) (timeline.Delta, error) {
	var merged types.Message
	if existing, ok := r.store.Find(conversationID, confirmed.ID); ok {
		merged = merge(existing, confirmed)
	} else {
		merged = merge(provisional, confirmed)
	}
	if merged.Status.Rank() < types.StatusSent.Rank() {
		merged.Status = types.StatusSent
	}
	return r.store.Apply(conversationID, timeline.Replace(provisional.ID, merged))
}

// FailSend marks the provisional message carrying token as failed. It is never
// retried automatically.
func (r *Reconciler) FailSend(conversationID, token string, cause error) timeline.Delta {
	r.recorder.SendFailed()
	provisional, ok := r.store.FindByToken(conversationID, token)
	if !ok {
		return timeline.Delta{ConversationID: conversationID}
	}
	failed := provisional
	failed.Status = types.StatusFailed
	if cause != nil {
		failed.Error = cause.Error()
	}
	delta, err := r.store.Apply(conversationID, timeline.Replace(provisional.ID, failed))
	if err != nil {
		r.logger.Warn("mark send failed", "conversation", conversationID, "err", err)
	}
	r.logger.Info("send failed", "conversation", conversationID, "token", token, "err", cause)
	return delta
}

// Retract removes a message that never reached the server.
func (r *Reconciler) Retract(conversationID, id string) (timeline.Delta, error) {
	msg, ok := r.store.Find(conversationID, id)
	if !ok {
		return timeline.Delta{ConversationID: conversationID}, nil
	}
	if !msg.Status.Pending() {
		return timeline.Delta{}, core.Validation("retract", "message %s is already sent", id)
	}
	return r.store.Apply(conversationID, timeline.Remove(id))
}

// Retry retracts a failed message and starts a new send of the same content
// under a fresh correlation token.
func (r *Reconciler) Retry(conversationID, id string) (types.Message, timeline.Delta, error) {
	msg, ok := r.store.Find(conversationID, id)
	if !ok {
		return types.Message{}, timeline.Delta{}, core.Validation("retry", "message %s not found", id)
	}
	if msg.Status != types.StatusFailed {
		return types.Message{}, timeline.Delta{}, core.Validation("retry", "message %s has not failed", id)
	}
	removed, err := r.store.Apply(conversationID, timeline.Remove(id))
	if err != nil {
		return types.Message{}, removed, err
	}
	next, sent, err := r.BeginSend(Draft{
		ConversationID: conversationID,
		Body:           msg.Body,
		ReplyTo:        msg.ReplyTo,
		Attachments:    msg.Attachments,
	})
	return next, removed.Merge(sent), err
}

// BeginEdit applies an edit optimistically under the existing confirmed id and
// returns the previous copy so a failed request can be reverted.
func (r *Reconciler) BeginEdit(conversationID, id, body string) (types.Message, timeline.Delta, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return types.Message{}, timeline.Delta{}, core.Validation("edit", "message body is empty")
	}
	prev, ok := r.store.Find(conversationID, id)
	switch {
	case !ok:
		return types.Message{}, timeline.Delta{}, core.Validation("edit", "message %s not found", id)
	case prev.Status.Pending():
		return types.Message{}, timeline.Delta{}, core.Validation("edit", "message %s is not sent yet", id)
	case prev.Deleted:
		return types.Message{}, timeline.Delta{}, core.Validation("edit", "message %s was deleted", id)
	case prev.AuthorID != r.viewerID:
		return types.Message{}, timeline.Delta{}, core.Validation("edit", "message %s belongs to another member", id)
	}
	edited := prev
	edited.Body = body
	edited.Edited = true
	delta, err := r.store.Apply(conversationID, timeline.Replace(id, edited))
	return prev, delta, err
}

// RevertEdit restores the copy returned by BeginEdit.
func (r *Reconciler) RevertEdit(conversationID string, prev types.Message) timeline.Delta {
	delta, err := r.store.Apply(conversationID, timeline.Replace(prev.ID, prev))
	if err != nil && !errors.Is(err, core.ErrStaleEvent) {
		r.logger.Warn("revert edit", "conversation", conversationID, "err", err)
	}
	return delta
}

// ApplyReactions routes an authoritative reaction toggle through the same
// patch the stream uses.
func (r *Reconciler) ApplyReactions(conversationID, id string, reactions []types.Reaction) timeline.Delta {
	delta, _ := r.store.Apply(conversationID, timeline.PatchReactions(id, reactions))
	return delta
}

// ApplyPin is the pin counterpart of ApplyReactions.
func (r *Reconciler) ApplyPin(conversationID, id string, pinned bool) timeline.Delta {
	delta, _ := r.applyPin(conversationID, id, pinned)
	return delta
}
