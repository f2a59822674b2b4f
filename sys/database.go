package sys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-sqlite3"
)

// --- Connection & Lifecycle ---

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	// The driver registers itself in init(); referencing it keeps the import explicit.
	_ = sqlite3.SQLiteDriver{}

	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS calls (
			chat_id TEXT PRIMARY KEY,
			paused INTEGER DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS assistants (
			chat_id TEXT PRIMARY KEY,
			assistant INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chat_settings (
			chat_id TEXT PRIMARY KEY,
			channel_id TEXT,
			lang TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS id_lists (
			list TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (list, user_id)
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	migrations := []string{
		"ALTER TABLE chat_settings ADD COLUMN lang TEXT",
		"ALTER TABLE calls ADD COLUMN started_at DATETIME",
	}

	for _, m := range migrations {
		if _, err := DB.ExecContext(initCtx, m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
		}
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		DB.Close()
	}
}

// --- Bot Persistence ---

func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// --- Call State ---

// CallStore persists live call state. It is the database side of the
// orchestrator's call-state port.
type CallStore struct{}

func (CallStore) AddCall(ctx context.Context, chat snowflake.ID) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO calls (chat_id, paused, started_at) VALUES (?, 0, CURRENT_TIMESTAMP)
		ON CONFLICT(chat_id) DO UPDATE SET paused = 0, started_at = CURRENT_TIMESTAMP
	`, chat.String())
	return err
}

func (CallStore) RemoveCall(ctx context.Context, chat snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM calls WHERE chat_id = ?", chat.String())
	return err
}

func (CallStore) HasCall(ctx context.Context, chat snowflake.ID) (bool, error) {
	var n int
	err := DB.QueryRowContext(ctx, "SELECT COUNT(1) FROM calls WHERE chat_id = ?", chat.String()).Scan(&n)
	return n > 0, err
}

func (CallStore) SetPaused(ctx context.Context, chat snowflake.ID, paused bool) error {
	_, err := DB.ExecContext(ctx, "UPDATE calls SET paused = ? WHERE chat_id = ?", boolToInt(paused), chat.String())
	return err
}

func (CallStore) IsPaused(ctx context.Context, chat snowflake.ID) (bool, error) {
	var p int
	err := DB.QueryRowContext(ctx, "SELECT paused FROM calls WHERE chat_id = ?", chat.String()).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return p == 1, err
}

// Assistant returns the pinned assistant index for chat.
func (CallStore) Assistant(ctx context.Context, chat snowflake.ID) (int, bool, error) {
	var idx int
	err := DB.QueryRowContext(ctx, "SELECT assistant FROM assistants WHERE chat_id = ?", chat.String()).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return idx, true, nil
}

func (CallStore) SetAssistant(ctx context.Context, chat snowflake.ID, idx int) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO assistants (chat_id, assistant) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET assistant = excluded.assistant, updated_at = CURRENT_TIMESTAMP
	`, chat.String(), idx)
	return err
}

func (CallStore) ClearAssistant(ctx context.Context, chat snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM assistants WHERE chat_id = ?", chat.String())
	return err
}

// ResetCalls drops call rows left behind by a previous process; calls never
// survive a restart.
func ResetCalls(ctx context.Context) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM calls")
	return err
}

// --- Chat Settings ---

func SetChatChannel(ctx context.Context, chat, channel snowflake.ID) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, channel_id) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET channel_id = excluded.channel_id, updated_at = CURRENT_TIMESTAMP
	`, chat.String(), channel.String())
	return err
}

func GetChatChannel(ctx context.Context, chat snowflake.ID) (snowflake.ID, error) {
	var raw sql.NullString
	err := DB.QueryRowContext(ctx, "SELECT channel_id FROM chat_settings WHERE chat_id = ?", chat.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !raw.Valid || raw.String == "" {
		return 0, nil
	}
	return snowflake.Parse(raw.String)
}

func SetChatLang(ctx context.Context, chat snowflake.ID, lang string) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, lang) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET lang = excluded.lang, updated_at = CURRENT_TIMESTAMP
	`, chat.String(), lang)
	return err
}

func GetChatLang(ctx context.Context, chat snowflake.ID) (string, error) {
	var raw sql.NullString
	err := DB.QueryRowContext(ctx, "SELECT lang FROM chat_settings WHERE chat_id = ?", chat.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return raw.String, err
}

// --- ID Lists (sudoers, blocklist) ---

func LoadIDList(ctx context.Context, list string) ([]snowflake.ID, error) {
	rows, err := DB.QueryContext(ctx, "SELECT user_id FROM id_lists WHERE list = ? ORDER BY created_at ASC", list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []snowflake.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if id, err := snowflake.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// ReplaceIDList rewrites a list in one transaction.
func ReplaceIDList(ctx context.Context, list string, ids []snowflake.ID) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM id_lists WHERE list = ?", list); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO id_lists (list, user_id) VALUES (?, ?)", list, id.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
