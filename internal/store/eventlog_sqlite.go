package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, "events.sqlite")
}

func (s Store) existingSQLitePath() (string, bool) {
	p := s.sqlitePath()
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	return "", false
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", sqliteDSN(s.sqlitePath()))
	if err != nil {
		return nil, err
	}
	if err := s.migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN carries the pragmas in the DSN so database/sql applies them to every pooled
// connection, not just the first one. WAL lets a follower read while the CLI writes; writers take
// the lock when the transaction begins so a concurrent reader waits instead of failing busy.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

const sqliteBusyTimeout = 5 * time.Second

func (s Store) migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			story_id TEXT NOT NULL,
			entity_kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			entity_seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			parents_json TEXT NOT NULL,
			issued_at_unixms INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_kind, entity_id, entity_seq);`,
		`CREATE TABLE IF NOT EXISTS entity_heads (
			entity_kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			head_event_id TEXT NOT NULL,
			next_seq INTEGER NOT NULL,
			PRIMARY KEY(entity_kind, entity_id)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	meta, _, err := s.loadOrInitStoryMeta()
	if err != nil {
		return err
	}
	_, err = ensureMetaValue(ctx, db, "story_id", meta.StoryID)
	return err
}

// ensureMetaValue returns the stored value for key, writing def first when it is missing.
func ensureMetaValue(ctx context.Context, db *sql.DB, key, def string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("empty meta key")
	}
	var v string
	err := db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = ?`, key).Scan(&v)
	if err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if strings.TrimSpace(def) == "" {
		def = uuid.NewString()
	}
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(k, v) VALUES(?, ?)`, key, def); err != nil {
		return "", err
	}
	return def, nil
}

func (s Store) appendEventSQLite(ctx context.Context, actorID, typ, entityID string, payload any) error {
	kind, actorID, typ, entityID, err := checkEventContract(actorID, typ, entityID)
	if err != nil {
		return err
	}

	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	storyID, err := ensureMetaValue(ctx, db, "story_id", "")
	if err != nil {
		return err
	}
	pb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	eventID := uuid.NewString()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var head string
	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT head_event_id, next_seq FROM entity_heads WHERE entity_kind = ? AND entity_id = ?`, kind.String(), entityID).Scan(&head, &seq)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		seq = 1
	default:
		return err
	}
	var parents []string
	if strings.TrimSpace(head) != "" {
		parents = []string{head}
	}
	parentsJSON, _ := json.Marshal(parents)

	if _, err := tx.ExecContext(ctx, `INSERT INTO events(
		event_id, story_id, entity_kind, entity_id, entity_seq, type, parents_json, issued_at_unixms, actor_id, payload_json
	) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventID, storyID, kind.String(), entityID, seq, typ, string(parentsJSON), time.Now().UTC().UnixMilli(), actorID, string(pb),
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO entity_heads(entity_kind, entity_id, head_event_id, next_seq) VALUES(?, ?, ?, ?)`,
		kind.String(), entityID, eventID, seq+1,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func scanEventV1(rows *sql.Rows) (EventV1, error) {
	var (
		ev          EventV1
		kind        string
		parentsJSON string
		issuedMs    int64
		payloadJSON string
	)
	if err := rows.Scan(&ev.EventID, &ev.StoryID, &kind, &ev.EntityID, &ev.EntitySeq, &ev.Type, &parentsJSON, &issuedMs, &ev.ActorID, &payloadJSON); err != nil {
		return EventV1{}, err
	}
	ev.EntityKind = EntityKind(kind)
	_ = json.Unmarshal([]byte(parentsJSON), &ev.Parents)
	ev.IssuedAt = time.UnixMilli(issuedMs).UTC()
	ev.Payload = json.RawMessage(payloadJSON)
	return ev, nil
}

const selectEventColumns = `SELECT event_id, story_id, entity_kind, entity_id, entity_seq, type, parents_json, issued_at_unixms, actor_id, payload_json FROM events`

// Rowid order is append order.
func (s Store) readEventsSQLite(ctx context.Context, limit int) ([]Event, error) {
	if _, ok := s.existingSQLitePath(); !ok {
		return []Event{}, nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := selectEventColumns + ` ORDER BY rowid ASC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryEvents(ctx, db, q, args...)
}

func (s Store) readEventsForEntitySQLite(ctx context.Context, entityID string, limit int) ([]Event, error) {
	if _, ok := s.existingSQLitePath(); !ok {
		return []Event{}, nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := selectEventColumns + ` WHERE entity_id = ? ORDER BY entity_seq ASC, rowid ASC`
	args := []any{entityID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryEvents(ctx, db, q, args...)
}

func queryEvents(ctx context.Context, db *sql.DB, q string, args ...any) ([]Event, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		ev, err := scanEventV1(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev.flatten())
	}
	return out, rows.Err()
}
