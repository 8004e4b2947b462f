// Package catalog persists repair-run outcomes to a local SQLite database
// so batch runs over large archives can be audited later.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/navtrace/recfix/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	scanned     INTEGER NOT NULL DEFAULT 0,
	copied      INTEGER NOT NULL DEFAULT 0,
	rewritten   INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	dropped     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS files (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	input_path   TEXT NOT NULL,
	output_path  TEXT NOT NULL,
	action       TEXT NOT NULL,
	pre_si       BOOLEAN NOT NULL,
	broken_patch BOOLEAN NOT NULL,
	switch_noise BOOLEAN NOT NULL,
	emitted      INTEGER NOT NULL,
	dropped      INTEGER NOT NULL,
	duplicates   INTEGER NOT NULL,
	dropouts     INTEGER NOT NULL,
	sentinels    INTEGER NOT NULL,
	noise_drops  INTEGER NOT NULL,
	processed_at TIMESTAMP NOT NULL
);
`

// Catalog records one run and its per-file outcomes.
type Catalog struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the catalog database at dbPath and
// starts a new run row.
func Open(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	runID := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start catalog run: %w", err)
	}
	return &Catalog{db: db, runID: runID}, nil
}

// RunID returns the identifier of the current run.
func (c *Catalog) RunID() string {
	return c.runID
}

// RecordFile persists the outcome of one processed recording.
func (c *Catalog) RecordFile(res pipeline.FileResult) error {
	var dups, drops, sentinels uint64
	for _, counts := range res.Counts {
		dups += counts.Duplicates
		drops += counts.Dropouts
		sentinels += counts.Sentinels
	}
	_, err := c.db.Exec(`
		INSERT INTO files (run_id, input_path, output_path, action,
			pre_si, broken_patch, switch_noise,
			emitted, dropped, duplicates, dropouts, sentinels, noise_drops,
			processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.runID, res.InputPath, res.OutputPath, string(res.Action),
		res.Profile.PreSIUnits, res.Profile.FromBrokenPatch, res.Profile.SwitchStateNoise,
		res.Emitted, res.Dropped, dups, drops, sentinels, res.SwitchNoise,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record file outcome: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its final counters.
func (c *Catalog) FinishRun(sum pipeline.Summary) error {
	_, err := c.db.Exec(`
		UPDATE runs
		SET finished_at = ?, scanned = ?, copied = ?, rewritten = ?, skipped = ?, dropped = ?
		WHERE id = ?`,
		time.Now().UTC(), sum.Scanned, sum.Copied, sum.Rewritten, sum.Skipped, sum.Dropped,
		c.runID)
	if err != nil {
		return fmt.Errorf("failed to finish catalog run: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
