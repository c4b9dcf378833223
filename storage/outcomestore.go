package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/an0x03e8/avred/model"
)

// OutcomeStore persists model.Outcome records, keyed by RunID, so an
// interrupted run can be reloaded and resumed from its staging flags.
type OutcomeStore struct {
	db *Database
}

func NewOutcomeStore(db *Database) *OutcomeStore {
	return &OutcomeStore{db: db}
}

// outcomePayload is the JSON-serialized portion of an Outcome that has no
// indexed column of its own: matches and verification detail.
type outcomePayload struct {
	Matches      model.MatchSet       `json:"matches"`
	Verification model.Verification   `json:"verification"`
}

// Save inserts or replaces the Outcome row for outcome.RunID.
func (s *OutcomeStore) Save(outcome *model.Outcome) error {
	payload, err := json.Marshal(outcomePayload{
		Matches:      outcome.Matches,
		Verification: outcome.Verification,
	})
	if err != nil {
		return fmt.Errorf("marshal outcome payload: %w", err)
	}

	var scanTime interface{}
	if !outcome.ScanTime.IsZero() {
		scanTime = outcome.ScanTime
	}

	query := `
		INSERT INTO outcomes (run_id, file_name, file_size, file_hash, is_scanned, is_verified, is_detected, appraisal, scanner_name, scanner_info, scan_time, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			file_name=excluded.file_name, file_size=excluded.file_size, file_hash=excluded.file_hash,
			is_scanned=excluded.is_scanned, is_verified=excluded.is_verified, is_detected=excluded.is_detected,
			appraisal=excluded.appraisal, scanner_name=excluded.scanner_name, scanner_info=excluded.scanner_info,
			scan_time=excluded.scan_time, payload=excluded.payload, updated_at=excluded.updated_at
	`
	_, err = s.db.DB().Exec(query,
		outcome.RunID, outcome.File.Name, outcome.File.Size, outcome.File.Hash,
		outcome.IsScanned, outcome.IsVerified, outcome.IsDetected, string(outcome.Appraisal),
		outcome.ScannerName, outcome.ScannerInfo, scanTime, string(payload), time.Now())
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

// GetByRunID loads the Outcome for runID, or nil if none exists.
func (s *OutcomeStore) GetByRunID(runID string) (*model.Outcome, error) {
	query := `
		SELECT run_id, file_name, file_size, file_hash, is_scanned, is_verified, is_detected, appraisal, scanner_name, scanner_info, scan_time, payload
		FROM outcomes WHERE run_id = ?
	`
	row := s.db.DB().QueryRow(query, runID)
	return scanOutcome(row)
}

// GetByFileHash loads the most recent Outcome for a given file hash, which
// lets a resumed CLI invocation skip re-scanning an already-processed
// file. Returns nil if none exists.
func (s *OutcomeStore) GetByFileHash(fileHash string) (*model.Outcome, error) {
	query := `
		SELECT run_id, file_name, file_size, file_hash, is_scanned, is_verified, is_detected, appraisal, scanner_name, scanner_info, scan_time, payload
		FROM outcomes WHERE file_hash = ? ORDER BY updated_at DESC LIMIT 1
	`
	row := s.db.DB().QueryRow(query, fileHash)
	return scanOutcome(row)
}

func scanOutcome(row *sql.Row) (*model.Outcome, error) {
	var (
		runID, fileName, fileHash, appraisal, scannerName, scannerInfo, payloadJSON string
		fileSize                                                                     int
		isScanned, isVerified, isDetected                                            bool
		scanTime                                                                     sql.NullTime
	)
	err := row.Scan(&runID, &fileName, &fileSize, &fileHash, &isScanned, &isVerified, &isDetected,
		&appraisal, &scannerName, &scannerInfo, &scanTime, &payloadJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan outcome: %w", err)
	}

	var payload outcomePayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal outcome payload: %w", err)
	}

	outcome := &model.Outcome{
		RunID:        runID,
		File:         model.FileInfo{Name: fileName, Size: fileSize, Hash: fileHash},
		Matches:      payload.Matches,
		Verification: payload.Verification,
		Appraisal:    model.Appraisal(appraisal),
		IsScanned:    isScanned,
		IsVerified:   isVerified,
		IsDetected:   isDetected,
		ScannerName:  scannerName,
		ScannerInfo:  scannerInfo,
	}
	if scanTime.Valid {
		outcome.ScanTime = scanTime.Time
	}
	return outcome, nil
}
