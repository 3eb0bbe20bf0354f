package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"setlist/pkg/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a playlist id does not exist.
var ErrNotFound = errors.New("playlist not found")

// Database wraps a *sql.DB providing higher-level helper methods for
// interacting with the playlist store. It is safe for concurrent use
// because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	insertPlaylistStmt *sql.Stmt
	getPlaylistStmt    *sql.Stmt
	updatePlaylistStmt *sql.Stmt
	deletePlaylistStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures the playlist schema exists. Caller should Close() it when finished.
func NewDatabase(dbPath string, maxConnections int, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConnections < 1 {
		maxConnections = 1
	}
	conn.SetMaxOpenConns(maxConnections)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id);",
		"CREATE INDEX IF NOT EXISTS idx_playlists_created ON playlists(created_at);",
	}

	if _, err := db.conn.Exec(playlistsTable); err != nil {
		return err
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return nil
}

func (db *Database) prepareStatements() error {
	var err error

	db.insertPlaylistStmt, err = db.conn.Prepare(`
		INSERT INTO playlists (id, owner_id, name, description, thumbnail_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert playlist statement: %w", err)
	}

	db.getPlaylistStmt, err = db.conn.Prepare(`
		SELECT id, owner_id, name, description, thumbnail_url, created_at, updated_at
		FROM playlists WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get playlist statement: %w", err)
	}

	db.updatePlaylistStmt, err = db.conn.Prepare(`
		UPDATE playlists
		SET name = ?, description = ?, thumbnail_url = ?, updated_at = ?
		WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update playlist statement: %w", err)
	}

	db.deletePlaylistStmt, err = db.conn.Prepare("DELETE FROM playlists WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare delete playlist statement: %w", err)
	}

	return nil
}

// CreatePlaylist assigns an id and timestamps to p and inserts it.
func (db *Database) CreatePlaylist(ctx context.Context, p *models.Playlist) error {
	now := time.Now().UTC().Truncate(time.Second)
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.insertPlaylistStmt.ExecContext(ctx,
		p.ID, p.OwnerID, p.Name, p.Description, p.ThumbnailURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		db.logger.WithError(err).WithField("owner_id", p.OwnerID).Error("Failed to insert playlist")
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

// GetPlaylist returns the playlist with the given id or ErrNotFound.
func (db *Database) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var p models.Playlist
	err := db.getPlaylistStmt.QueryRowContext(ctx, id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.ThumbnailURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}
	return &p, nil
}

// ListPlaylists returns playlists newest first, optionally limited to one owner.
func (db *Database) ListPlaylists(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	query := `
		SELECT id, owner_id, name, description, thumbnail_url, created_at, updated_at
		FROM playlists`
	var args []interface{}
	if ownerID != "" {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		var p models.Playlist
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.ThumbnailURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}

	return playlists, rows.Err()
}

// UpdatePlaylist writes name, description and thumbnail of p and bumps
// UpdatedAt. Returns ErrNotFound if no row matched.
func (db *Database) UpdatePlaylist(ctx context.Context, p *models.Playlist) error {
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	result, err := db.updatePlaylistStmt.ExecContext(ctx, p.Name, p.Description, p.ThumbnailURL, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update playlist: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlaylist removes the playlist. Returns ErrNotFound if no row matched.
func (db *Database) DeletePlaylist(ctx context.Context, id string) error {
	result, err := db.deletePlaylistStmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	db.logger.WithField("playlist_id", id).Info("Deleted playlist")
	return nil
}

// Ping checks database connectivity.
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.insertPlaylistStmt,
		db.getPlaylistStmt,
		db.updatePlaylistStmt,
		db.deletePlaylistStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
