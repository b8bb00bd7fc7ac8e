package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event log backend selection.
//
// STORYTREE_EVENTLOG=jsonl|sqlite forces a backend. Otherwise an existing JSONL log wins and
// SQLite is the default.
const envEventLogBackend = "STORYTREE_EVENTLOG"

type EventLogBackend string

const (
	EventLogBackendJSONL  EventLogBackend = "jsonl"
	EventLogBackendSQLite EventLogBackend = "sqlite"
)

// EntityKind is the per-entity stream identifier of the v1 event contract.
type EntityKind string

const (
	EntityKindNode EntityKind = "node"
)

// Event types.
const (
	EventNodeCreate = "node.create"
	EventNodeMove   = "node.move"
	EventNodeModify = "node.modify"
	EventNodeDelete = "node.delete"
)

// EventV1 is the durable, per-entity ordered event envelope.
type EventV1 struct {
	EventID string `json:"eventId"`
	StoryID string `json:"storyId"`

	EntityKind EntityKind `json:"entityKind"`
	EntityID   string     `json:"entityId"`
	EntitySeq  int64      `json:"entitySeq"`

	Type    string   `json:"type"`
	Parents []string `json:"parents,omitempty"`

	IssuedAt time.Time       `json:"issuedAt"`
	ActorID  string          `json:"actorId"`
	Payload  json.RawMessage `json:"payload"`
}

// Event is the flattened view of an EventV1 served to callers.
type Event struct {
	ID       string          `json:"id"`
	TS       time.Time       `json:"ts"`
	ActorID  string          `json:"actorId"`
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Seq      int64           `json:"seq"`
	Payload  json.RawMessage `json:"payload"`
}

func (e EventV1) flatten() Event {
	return Event{
		ID:       e.EventID,
		TS:       e.IssuedAt.UTC(),
		ActorID:  e.ActorID,
		Type:     e.Type,
		EntityID: e.EntityID,
		Seq:      e.EntitySeq,
		Payload:  e.Payload,
	}
}

// DecodedPayload unmarshals the payload into generic values, for output encoders that do not
// understand raw JSON.
func (e Event) DecodedPayload() any {
	var v any
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return string(e.Payload)
	}
	return v
}

// NodeEntityID is the entity id used for the card with the given uid.
func NodeEntityID(uid int) string { return fmt.Sprintf("node-%d", uid) }

// ParseNodeEntityID is the inverse of NodeEntityID.
func ParseNodeEntityID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(id), "node-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s Store) eventLogBackend() EventLogBackend {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(envEventLogBackend)))
	switch v {
	case string(EventLogBackendJSONL):
		return EventLogBackendJSONL
	case string(EventLogBackendSQLite):
		return EventLogBackendSQLite
	default:
		if s.hasJSONLEvents() {
			return EventLogBackendJSONL
		}
		return EventLogBackendSQLite
	}
}

// Backend reports the event log backend this store reads and writes.
func (s Store) Backend() EventLogBackend { return s.eventLogBackend() }

func (s Store) hasJSONLEvents() bool {
	st, err := os.Stat(s.jsonlPath())
	return err == nil && !st.IsDir()
}

// PreferJSONL pins a story without events to the JSONL backend by creating an empty log. A story
// that already recorded to SQLite is left alone and reported false.
func (s Store) PreferJSONL() (bool, error) {
	if s.hasJSONLEvents() {
		return true, nil
	}
	if _, ok := s.existingSQLitePath(); ok {
		return false, nil
	}
	if err := s.Ensure(); err != nil {
		return false, err
	}
	f, err := os.OpenFile(s.jsonlPath(), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	return true, f.Close()
}

// inferEntityKindFromType maps an event type prefix to its entity kind.
func inferEntityKindFromType(typ string) EntityKind {
	prefix := strings.TrimSpace(typ)
	if prefix == "" {
		return ""
	}
	if i := strings.Index(prefix, "."); i >= 0 {
		prefix = prefix[:i]
	}
	return EntityKind(prefix)
}

func (k EntityKind) valid() bool {
	return strings.TrimSpace(string(k)) != ""
}

func (k EntityKind) String() string { return string(k) }

func formatErrEventContract(msg string, args ...any) error {
	return fmt.Errorf("event contract: "+msg, args...)
}

// checkEventContract validates and trims the fields every appended event must carry.
func checkEventContract(actorID, typ, entityID string) (EntityKind, string, string, string, error) {
	kind := inferEntityKindFromType(typ)
	if !kind.valid() {
		return "", "", "", "", formatErrEventContract("invalid entity kind for type %q", typ)
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return "", "", "", "", formatErrEventContract("missing entity id")
	}
	typ = strings.TrimSpace(typ)
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return "", "", "", "", formatErrEventContract("missing actor id")
	}
	return kind, actorID, typ, entityID, nil
}
