package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sjsage522/storecrawler/internal/crawler"
	"sjsage522/storecrawler/logger"
	"sjsage522/storecrawler/pkg/errors"
)

//go:embed schema.sql
var schema string

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one recorded command invocation
type Run struct {
	ID         int64
	Command    string
	Target     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Items      int
	Error      string
}

// Store records crawl results in SQLite. Nothing is read back by the crawlers.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens or creates the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorage(fmt.Sprintf("failed to open %s", path), err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewStorage("failed to apply schema", err)
	}

	return &Store{db: db, log: logger.ForComponent("store")}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a command and returns its run id
func (s *Store) StartRun(ctx context.Context, command, target string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (command, target, started_at, status) VALUES (?, ?, ?, ?)`,
		command, target, time.Now().UTC(), StatusRunning)
	if err != nil {
		return 0, errors.NewStorage("failed to start run", err)
	}
	return res.LastInsertId()
}

// FinishRun marks a run ok, or failed when runErr is set
func (s *Store) FinishRun(ctx context.Context, runID int64, runErr error) error {
	status := StatusOK
	var msg sql.NullString
	if runErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE crawl_runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), status, msg, runID)
	if err != nil {
		return errors.NewStorage("failed to finish run", err)
	}
	return nil
}

// SaveProducts stores the products a run found on source, in crawl order
func (s *Store) SaveProducts(ctx context.Context, runID int64, source string, products []crawler.ProductRecord) error {
	return s.insert(ctx, runID, len(products),
		`INSERT INTO products (run_id, source, position, title, link, price, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		func(stmt *sql.Stmt, i int) error {
			p := products[i]
			_, err := stmt.ExecContext(ctx, runID, source, i+1, p.Title, p.Link, p.Price, p.ImageURL)
			return err
		})
}

// SaveSliderImages stores the slider images a run found on source
func (s *Store) SaveSliderImages(ctx context.Context, runID int64, source string, images []string) error {
	return s.insert(ctx, runID, len(images),
		`INSERT INTO slider_images (run_id, source, position, image_url) VALUES (?, ?, ?, ?)`,
		func(stmt *sql.Stmt, i int) error {
			_, err := stmt.ExecContext(ctx, runID, source, i+1, images[i])
			return err
		})
}

// insert runs n statement executions and the run's item count update in one transaction
func (s *Store) insert(ctx context.Context, runID int64, n int, query string, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.NewStorage("failed to prepare insert", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return errors.NewStorage("failed to insert row", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE crawl_runs SET items = items + ? WHERE id = ?`, n, runID); err != nil {
		return errors.NewStorage("failed to update run", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStorage("failed to commit", err)
	}

	s.log.Debug().Int64("run", runID).Int("rows", n).Msg("Results stored")
	return nil
}

// Runs returns the most recent runs, newest first
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, target, started_at, finished_at, status, items, error
		 FROM crawl_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.NewStorage("failed to list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			finished sql.NullTime
			msg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Command, &r.Target, &r.StartedAt, &finished, &r.Status, &r.Items, &msg); err != nil {
			return nil, errors.NewStorage("failed to read run", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		r.Error = msg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("failed to list runs", err)
	}
	return runs, nil
}
