package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database and applies schema migrations before the
// service accepts any traffic. Schema invariants are established once at
// startup, never re-checked per request.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

// Migrate applies the schema. The partial unique index on the normalized
// participant pair is what serializes concurrent pairwise creation, and the
// group_members primary key is what makes member inserts idempotent-safe.
func Migrate(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id SERIAL PRIMARY KEY,
            is_group BOOLEAN NOT NULL DEFAULT FALSE,
            participant1_id INT,
            participant2_id INT,
            title TEXT,
            created_by INT,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (is_group OR (participant1_id IS NOT NULL AND participant2_id IS NOT NULL))
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS conversations_pair_unique
            ON conversations (participant1_id, participant2_id)
            WHERE is_group = FALSE;`,
		`CREATE TABLE IF NOT EXISTS group_members (
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('admin', 'member')),
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            text TEXT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'text',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_order
            ON messages (conversation_id, created_at, id);`,
		`CREATE INDEX IF NOT EXISTS messages_unread
            ON messages (conversation_id, sender_id) WHERE is_read = FALSE;`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
