// Package store keeps a SQLite log of generated request URLs and download
// outcomes.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Generation is one generated request URL and the options it was built from.
type Generation struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Size      int    `json:"size"`
	Format    string `json:"format"`
	Color     string `json:"color"`
	BgColor   string `json:"bgcolor"`
	CreatedAt int64  `json:"created_at"`
}

// Download is the recorded outcome of one download attempt.
type Download struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Bytes     int64  `json:"bytes"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// HistoryStore manages SQLite storage for generation and download history.
type HistoryStore struct {
	db  *sql.DB
	now func() time.Time
}

const createGenerationsTable = `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    content TEXT NOT NULL,
    size INTEGER NOT NULL,
    format TEXT NOT NULL,
    color TEXT NOT NULL,
    bgcolor TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

const createDownloadsTable = `
CREATE TABLE IF NOT EXISTS downloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    filename TEXT NOT NULL DEFAULT '',
    bytes INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
`

// NewHistoryStore opens (or creates) the SQLite database at dbPath and
// initialises the schema.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range []string{
		createGenerationsTable,
		createDownloadsTable,
		createIndexes,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec schema statement: %w", err)
		}
	}

	return &HistoryStore{db: db, now: time.Now}, nil
}

// SaveGeneration appends g. ID and CreatedAt are filled in.
func (s *HistoryStore) SaveGeneration(g *Generation) error {
	const query = `
		INSERT INTO generations
			(session_id, url, content, size, format, color, bgcolor, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)
	`

	g.CreatedAt = s.now().UnixMilli()
	res, err := s.db.Exec(query,
		g.SessionID, g.URL, g.Content, g.Size, g.Format, g.Color, g.BgColor, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	return nil
}

// SaveDownload appends d. ID and CreatedAt are filled in.
func (s *HistoryStore) SaveDownload(d *Download) error {
	const query = `
		INSERT INTO downloads
			(session_id, url, filename, bytes, status, error, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
	`

	d.CreatedAt = s.now().UnixMilli()
	res, err := s.db.Exec(query,
		d.SessionID, d.URL, d.Filename, d.Bytes, d.Status, d.Error, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("save download: %w", err)
	}
	return nil
}

// GetGenerations returns generations newest first. Use limit and offset for
// pagination.
func (s *HistoryStore) GetGenerations(limit, offset int) ([]Generation, error) {
	const query = `
		SELECT id, session_id, url, content, size, format, color, bgcolor, created_at
		FROM generations
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get generations: %w", err)
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		if err := rows.Scan(
			&g.ID, &g.SessionID, &g.URL, &g.Content, &g.Size,
			&g.Format, &g.Color, &g.BgColor, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation row: %w", err)
		}
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation rows: %w", err)
	}
	return gens, nil
}

// GetDownloads returns download attempts newest first.
func (s *HistoryStore) GetDownloads(limit, offset int) ([]Download, error) {
	const query = `
		SELECT id, session_id, url, filename, bytes, status, error, created_at
		FROM downloads
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get downloads: %w", err)
	}
	defer rows.Close()

	var dls []Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(
			&d.ID, &d.SessionID, &d.URL, &d.Filename, &d.Bytes,
			&d.Status, &d.Error, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan download row: %w", err)
		}
		dls = append(dls, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate download rows: %w", err)
	}
	return dls, nil
}

// Close closes the underlying database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
