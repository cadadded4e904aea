package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pvieira94/courier/internal/store/migrations"
)

// DB wraps the SQLite connection holding persisted drafts and outbox
// entries. Attachments, selection and editing state are never written here.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// MigrateResult describes what happened during migration.
type MigrateResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate runs all pending migrations on the database.
func (db *DB) Migrate() (*MigrateResult, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}

	err = m.Up()
	changed := true
	if err == migrate.ErrNoChange {
		changed = false
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, _ := m.Version()
	return &MigrateResult{
		Version: version,
		Dirty:   dirty,
		Changed: changed,
	}, nil
}

// LoadState reads the persisted drafts and outbox, runs them through Clean,
// and returns the validated state. Rows with undecodable JSON come through
// as malformed fields and are dropped by Clean rather than failing the load.
func (db *DB) LoadState() (*State, error) {
	raw := &RawState{
		Drafts: make(map[string]RawDraft),
		Outbox: make(map[string][]RawUnsent),
	}

	rows, err := db.Query(`SELECT channel_id, content, replies, files FROM drafts`)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var channelID, content, replies, files string
		if err := rows.Scan(&channelID, &content, &replies, &files); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		raw.Drafts[channelID] = RawDraft{
			Content: content,
			Replies: decodeLoose(replies),
			Files:   decodeLoose(files),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}

	oRows, err := db.Query(`
		SELECT channel_id, idempotency_key, status, content, replies
		FROM outbox ORDER BY channel_id, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load outbox: %w", err)
	}
	defer func() { _ = oRows.Close() }()
	for oRows.Next() {
		var channelID, key, status, content, replies string
		if err := oRows.Scan(&channelID, &key, &status, &content, &replies); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		raw.Outbox[channelID] = append(raw.Outbox[channelID], RawUnsent{
			IdempotencyKey: key,
			Status:         status,
			Content:        content,
			Replies:        decodeLoose(replies),
		})
	}
	if err := oRows.Err(); err != nil {
		return nil, fmt.Errorf("load outbox: %w", err)
	}

	return Clean(raw), nil
}

// SaveState replaces the persisted drafts and outbox with the given state in
// one transaction.
func (db *DB) SaveState(state *State) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM drafts`); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM outbox`); err != nil {
		return fmt.Errorf("clear outbox: %w", err)
	}

	now := time.Now().UnixMilli()
	for channelID, d := range state.Drafts {
		if d.Empty() {
			continue
		}
		replies, err := json.Marshal(orEmpty(d.Replies))
		if err != nil {
			return fmt.Errorf("encode replies: %w", err)
		}
		files, err := json.Marshal(orEmptyStrings(d.Files))
		if err != nil {
			return fmt.Errorf("encode files: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO drafts (channel_id, content, replies, files, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			channelID, d.Content, string(replies), string(files), now); err != nil {
			return fmt.Errorf("insert draft: %w", err)
		}
	}

	for channelID, msgs := range state.Outbox {
		for pos, m := range msgs {
			replies, err := json.Marshal(orEmpty(m.Replies))
			if err != nil {
				return fmt.Errorf("encode replies: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT INTO outbox (channel_id, position, idempotency_key, status, content, replies, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				channelID, pos, m.IdempotencyKey, string(m.Status), m.Content, string(replies), now); err != nil {
				return fmt.Errorf("insert outbox entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// decodeLoose parses JSON into an untyped value; undecodable input comes
// back as the raw string so Clean treats it as malformed.
func decodeLoose(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func orEmpty(r []Reply) []Reply {
	if r == nil {
		return []Reply{}
	}
	return r
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
