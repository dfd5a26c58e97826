package session

import (
	"time"
	"unicode/utf8"
)

const transactionalValue = "transactional"

// Row is one flattened event keyed by session identifier and timestamp.
type Row struct {
	SessionID string
	Timestamp time.Time
	Fields    Fields

	Canal         Channel
	Transactional string

	// Intent and KnowledgeDomain are filled across the session; RawIntent
	// keeps the value the event itself carried.
	Intent          string
	KnowledgeDomain string
	RawIntent       string

	ConversationLog string
}

func newRow(f Fields) *Row {
	r := &Row{Fields: f}

	r.SessionID, _ = f.String(FieldSessionID)
	if ts, ok := f[FieldTimestamp].(time.Time); ok {
		r.Timestamp = ts
	}

	r.Canal = ClassifyChannel(r.SessionID)
	r.Transactional, _ = f.String(FieldTransactional)
	r.Intent, _ = f.String(FieldIntentName)
	r.RawIntent = r.Intent
	r.KnowledgeDomain, _ = f.String(FieldKnowledgeDomain)

	log, _ := f.String(FieldConversationLog)
	said, _ := f.String(FieldInputTranscript)
	answered, _ := f.String(FieldFinalResponse)
	r.ConversationLog = log + ", user_say: " + said + ", bot_say: " + answered

	return r
}

// HasIntent reports whether the event itself resolved an intent, regardless
// of what the session fill gave the row.
func (r *Row) HasIntent() bool {
	return r.RawIntent != ""
}

// ConversationLogLength is the length of ConversationLog in characters.
func (r *Row) ConversationLogLength() int {
	return utf8.RuneCountInString(r.ConversationLog)
}

func (r *Row) hasSlotType() bool {
	_, ok := r.Fields.String(FieldSlotType)
	return ok
}
