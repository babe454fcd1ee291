package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/yegors/airspace-monitor/pkg/logger"
	_ "modernc.org/sqlite"
)

// Storage is a SQLite-backed store for text messages and ATC sessions
type Storage struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (or creates) the database at dbPath
func Open(dbPath string, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS text_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			recipient TEXT,
			frequency_hz INTEGER DEFAULT 0,
			message TEXT NOT NULL,
			outgoing INTEGER DEFAULT 0,
			sent_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create text_messages table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS atc_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			callsign TEXT NOT NULL,
			controller_id TEXT,
			controller_name TEXT,
			frequency_hz INTEGER DEFAULT 0,
			connected_at TIMESTAMP NOT NULL,
			disconnected_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create atc_sessions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_text_messages_sent_at ON text_messages(sent_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index on text_messages.sent_at: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_atc_sessions_callsign ON atc_sessions(callsign, connected_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index on atc_sessions.callsign: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}
