package stubserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/scopenote/scopenote/internal/shared"
)

// ImageRecord is one persisted classified image.
type ImageRecord struct {
	ID          int64
	Filename    string
	Description string
	Label       string
	Thumbnail   []byte
}

// ImageStore persists classified images and their thumbnails in
// SQLite so thumbnail fetches survive a session's lifetime.
type ImageStore struct {
	db *sql.DB
}

// OpenImageStore opens (or creates) the SQLite database at path.
// Use ":memory:" for an ephemeral store.
func OpenImageStore(path string) (*ImageStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS IMAGE (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_filename TEXT NOT NULL,
		image_description TEXT,
		image_thumbnail BLOB,
		label TEXT
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create image table: %w", err)
	}

	return &ImageStore{db: db}, nil
}

func (s *ImageStore) Create(ctx context.Context, rec ImageRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO IMAGE (image_filename, image_description, image_thumbnail, label)
		VALUES (?, ?, ?, ?)`,
		rec.Filename, rec.Description, rec.Thumbnail, rec.Label,
	)
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	return res.LastInsertId()
}

func (s *ImageStore) GetByID(ctx context.Context, imageID int64) (*ImageRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, image_filename, image_description, image_thumbnail, label
		FROM IMAGE WHERE id = ?`, imageID)

	var rec ImageRecord
	var description, label sql.NullString
	err := row.Scan(&rec.ID, &rec.Filename, &description, &rec.Thumbnail, &label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %d %w", imageID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query image: %w", err)
	}
	rec.Description = description.String
	rec.Label = label.String
	return &rec, nil
}

func (s *ImageStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM IMAGE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (s *ImageStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ImageStore) Stats() sql.DBStats {
	return s.db.Stats()
}

func (s *ImageStore) Close() error {
	return s.db.Close()
}
