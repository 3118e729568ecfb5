// ABOUTME: Session and Event types plus their document representations
// ABOUTME: Conversion is lenient on read so schema drift degrades instead of failing

package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/2389/coven-sessions/internal/docstore"
)

// Session is one conversation between a user and an application. The
// persisted document carries only session-local state; app- and user-tier
// keys are overlaid into State (with their prefixes) when the session is
// read back, so State as seen by callers is the merged three-tier view.
type Session struct {
	ID             string
	AppName        string
	UserID         string
	State          map[string]any
	Events         []*Event
	LastUpdateTime time.Time
}

// Event is an immutable entry in a session's event log.
type Event struct {
	ID        string
	Author    string
	Timestamp time.Time

	// Partial marks a streaming fragment that must not be persisted.
	Partial bool

	// StateDelta is the set of scoped-key changes this event applies.
	StateDelta map[string]any

	// Payload carries auxiliary event fields opaque to this layer.
	Payload map[string]any
}

var errMissingID = errors.New("record has no id")

// Timestamps are persisted as Unix microseconds so both store backends
// order them correctly with a plain numeric comparison.

func sessionDoc(s *Session) docstore.Document {
	state := s.State
	if state == nil {
		state = map[string]any{}
	}
	return docstore.Document{
		"id":               s.ID,
		"app_name":         s.AppName,
		"user_id":          s.UserID,
		"state":            state,
		"last_update_time": s.LastUpdateTime.UnixMicro(),
	}
}

// sessionFromDoc rebuilds a session from its stored document. Fields that
// are missing or of the wrong shape fall back to the caller-supplied
// identity, an empty state map, and a zero timestamp, so one malformed
// field never fails the whole read.
func sessionFromDoc(doc docstore.Document, appName, userID, sessionID string) *Session {
	s := &Session{
		ID:      stringField(doc, "id", sessionID),
		AppName: stringField(doc, "app_name", appName),
		UserID:  stringField(doc, "user_id", userID),
		State:   mapField(doc, "state"),
		Events:  []*Event{},
	}
	if micros, ok := int64Field(doc, "last_update_time"); ok {
		s.LastUpdateTime = time.UnixMicro(micros).UTC()
	}
	return s
}

// eventDoc serializes an event for storage. Empty optional fields are
// omitted; the partial flag is never stored since partial events are
// never persisted at all.
func eventDoc(e *Event) docstore.Document {
	doc := docstore.Document{
		"id":        e.ID,
		"timestamp": e.Timestamp.UnixMicro(),
	}
	if e.Author != "" {
		doc["author"] = e.Author
	}
	if len(e.StateDelta) > 0 {
		doc["state_delta"] = e.StateDelta
	}
	if len(e.Payload) > 0 {
		doc["payload"] = e.Payload
	}
	return doc
}

// eventFromDoc rebuilds an event from its stored document. An event with
// no identifier is unusable and reported as an error so callers can skip
// it; every other field is optional.
func eventFromDoc(doc docstore.Document) (*Event, error) {
	id := stringField(doc, "id", "")
	if id == "" {
		return nil, errMissingID
	}
	e := &Event{
		ID:         id,
		Author:     stringField(doc, "author", ""),
		StateDelta: mapFieldOrNil(doc, "state_delta"),
		Payload:    mapFieldOrNil(doc, "payload"),
	}
	if micros, ok := int64Field(doc, "timestamp"); ok {
		e.Timestamp = time.UnixMicro(micros).UTC()
	}
	return e, nil
}

func stringField(doc docstore.Document, key, fallback string) string {
	if v, ok := doc[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func mapField(doc docstore.Document, key string) map[string]any {
	if v, ok := doc[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func mapFieldOrNil(doc docstore.Document, key string) map[string]any {
	if v, ok := doc[key].(map[string]any); ok {
		return v
	}
	return nil
}

// int64Field coerces a numeric document field. Values pass through JSON
// in the SQLite backend and come back as float64, while the in-memory
// backend returns them unchanged.
func int64Field(doc docstore.Document, key string) (int64, bool) {
	switch v := doc[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}
