package storage

import (
	"fmt"
	"time"

	"github.com/an0x03e8/avred/errors"
)

// DeadLetterQueue records runs abandoned after a fatal pipeline error
// (unsupported file type, an unreachable oracle) so they can be inspected
// or retried later without cluttering the outcomes table with incomplete
// records. A run ended by an inconsistent oracle is not an error here: it
// is saved as an Outcome with Appraisal Unknown.
type DeadLetterQueue struct {
	db *Database
}

func NewDeadLetterQueue(db *Database) *DeadLetterQueue {
	return &DeadLetterQueue{db: db}
}

// Add records runID's abandonment. The category comes from the
// CategorizedError that aborted the run, if there was one.
func (q *DeadLetterQueue) Add(runID, filename string, cause error) error {
	category, _ := errors.CategoryOf(cause)
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	query := `
		INSERT INTO dead_letter (run_id, file_name, category, reason, failed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			file_name=excluded.file_name, category=excluded.category, reason=excluded.reason, failed_at=excluded.failed_at
	`
	_, err := q.db.DB().Exec(query, runID, filename, string(category), reason, time.Now())
	if err != nil {
		return fmt.Errorf("add dead letter entry: %w", err)
	}
	return nil
}

// DeadLetterEntry is one abandoned-run record.
type DeadLetterEntry struct {
	RunID    string
	FileName string
	Category errors.Category
	Reason   string
	FailedAt time.Time
}

// List returns every dead-lettered run, most recent first.
func (q *DeadLetterQueue) List() ([]DeadLetterEntry, error) {
	rows, err := q.db.DB().Query(`SELECT run_id, file_name, category, reason, failed_at FROM dead_letter ORDER BY failed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list dead letter entries: %w", err)
	}
	defer rows.Close()

	var entries []DeadLetterEntry
	for rows.Next() {
		var e DeadLetterEntry
		var category string
		if err := rows.Scan(&e.RunID, &e.FileName, &category, &e.Reason, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter entry: %w", err)
		}
		e.Category = errors.Category(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letter entries: %w", err)
	}
	return entries, nil
}
