package storage

import (
	"fmt"
	"time"
)

// OracleLog records every oracle call issued during a run, for auditing
// call volume and diagnosing oracle flakiness after the fact.
type OracleLog struct {
	db *Database
}

func NewOracleLog(db *Database) *OracleLog {
	return &OracleLog{db: db}
}

// Record appends one oracle call outcome to the log.
func (l *OracleLog) Record(runID, filename string, payloadSize int, detected bool, callErr error, duration time.Duration) error {
	errMsg := ""
	if callErr != nil {
		errMsg = callErr.Error()
	}

	query := `
		INSERT INTO oracle_calls (run_id, filename, payload_size, detected, error, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := l.db.DB().Exec(query, runID, filename, payloadSize, detected, errMsg, duration.Milliseconds(), time.Now())
	if err != nil {
		return fmt.Errorf("record oracle call: %w", err)
	}
	return nil
}

// CountForRun returns how many oracle calls have been logged for runID,
// independent of any in-process counter, so a resumed run can report
// cumulative call volume across process restarts.
func (l *OracleLog) CountForRun(runID string) (int, error) {
	var count int
	err := l.db.DB().QueryRow("SELECT COUNT(*) FROM oracle_calls WHERE run_id = ?", runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count oracle calls: %w", err)
	}
	return count, nil
}
