package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// dbType is "sqlite" or "postgres", set at connect time
var dbType string

// Connect establishes a connection to the database. DB_TYPE selects
// the backend: "sqlite" (default) stores under the data directory,
// "postgres" connects via DATABASE_URL.
func Connect() error {
	dbType = os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	switch dbType {
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
		DB = db
	case "sqlite":
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "data"
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}
		if err := connectSQLite(filepath.Join(dataDir, "triplehelix.db")); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}

	return initializeSchema()
}

// ConnectSQLite opens a sqlite database at the given path and
// initializes the schema. Tests use ":memory:".
func ConnectSQLite(path string) error {
	dbType = "sqlite"
	if err := connectSQLite(path); err != nil {
		return err
	}
	return initializeSchema()
}

func connectSQLite(path string) error {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %v", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	DB = db
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// IsPostgres reports whether the connected backend is postgres. Some
// queries need dialect-specific SQL.
func IsPostgres() bool {
	return dbType == "postgres"
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if IsPostgres() {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	// Stitch scheduling rows, one per (user, thread, stitch)
	_, err := DB.Exec(`
		CREATE TABLE IF NOT EXISTS stitch_progress (
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			stitch_id TEXT NOT NULL,
			order_number INTEGER DEFAULT 0,
			skip_number INTEGER DEFAULT 1,
			distractor_level TEXT DEFAULT 'L1',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, thread_id, stitch_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create stitch_progress table: %v", err)
	}

	// Append-only, one row per completed stitch session
	_, err = DB.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS session_results (
			id %s,
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			stitch_id TEXT NOT NULL,
			correct_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			points INTEGER NOT NULL,
			completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, serial))
	if err != nil {
		return fmt.Errorf("failed to create session_results table: %v", err)
	}

	// Running aggregate totals per user
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			total_points INTEGER DEFAULT 0,
			session_count INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create profiles table: %v", err)
	}

	// Latest full progress state per user, stored as JSON
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS state_snapshots (
			user_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create state_snapshots table: %v", err)
	}

	// Authored stitch content
	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS stitches (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			tube_number INTEGER NOT NULL,
			title TEXT,
			content TEXT,
			order_number INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create stitches table: %v", err)
	}

	_, err = DB.Exec(`
		CREATE TABLE IF NOT EXISTS questions (
			id TEXT NOT NULL,
			stitch_id TEXT NOT NULL,
			text TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			distractor_l1 TEXT,
			distractor_l2 TEXT,
			distractor_l3 TEXT,
			PRIMARY KEY (stitch_id, id),
			FOREIGN KEY (stitch_id) REFERENCES stitches(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create questions table: %v", err)
	}

	if IsPostgres() {
		// Last-resort write path for the persistence gateway: a server
		// side routine doing the upsert in one call.
		_, err = DB.Exec(`
			CREATE OR REPLACE FUNCTION upsert_stitch_progress(
				p_user_id TEXT, p_thread_id TEXT, p_stitch_id TEXT,
				p_order_number INTEGER, p_skip_number INTEGER, p_distractor_level TEXT
			) RETURNS VOID AS $$
			BEGIN
				INSERT INTO stitch_progress (user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at)
				VALUES (p_user_id, p_thread_id, p_stitch_id, p_order_number, p_skip_number, p_distractor_level, NOW())
				ON CONFLICT (user_id, thread_id, stitch_id) DO UPDATE SET
					order_number = EXCLUDED.order_number,
					skip_number = EXCLUDED.skip_number,
					distractor_level = EXCLUDED.distractor_level,
					updated_at = NOW();
			END;
			$$ LANGUAGE plpgsql
		`)
		if err != nil {
			return fmt.Errorf("failed to create upsert routine: %v", err)
		}
	}

	return nil
}
