package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// RecoveryService finds runs left incomplete by a previous process — crash,
// kill, or an oracle outage mid-run — so a caller can resume them instead
// of starting over.
type RecoveryService struct {
	outcomes *OutcomeStore
	db       *Database
	logger   *logrus.Entry
}

func NewRecoveryService(outcomes *OutcomeStore, db *Database, logger *logrus.Entry) *RecoveryService {
	return &RecoveryService{outcomes: outcomes, db: db, logger: logger}
}

// IncompleteRun identifies one outcome that started but never reached a
// terminal state (scanned-but-undetected, hash-appraised, or verified).
type IncompleteRun struct {
	RunID    string
	FileName string
	Stage    string
}

// FindIncomplete returns every persisted outcome whose staging flags show
// it stopped mid-pipeline.
func (rs *RecoveryService) FindIncomplete() ([]IncompleteRun, error) {
	rows, err := rs.db.DB().Query(`
		SELECT run_id, file_name, is_scanned, is_verified, is_detected, appraisal
		FROM outcomes
		WHERE NOT (
			(is_scanned = 1 AND is_detected = 0)
			OR (is_scanned = 1 AND appraisal = 'Hash')
			OR (is_scanned = 1 AND is_verified = 1)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("query incomplete outcomes: %w", err)
	}
	defer rows.Close()

	var out []IncompleteRun
	for rows.Next() {
		var (
			runID, fileName, appraisal string
			isScanned, isVerified, isDetected bool
		)
		if err := rows.Scan(&runID, &fileName, &isScanned, &isVerified, &isDetected, &appraisal); err != nil {
			return nil, fmt.Errorf("scan incomplete outcome: %w", err)
		}
		out = append(out, IncompleteRun{
			RunID:    runID,
			FileName: fileName,
			Stage:    stageOf(isScanned, isVerified, isDetected),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete outcomes: %w", err)
	}
	return out, nil
}

func stageOf(isScanned, isVerified, isDetected bool) string {
	switch {
	case !isScanned:
		return "not_scanned"
	case isScanned && isDetected && !isVerified:
		return "scanned_awaiting_verification"
	default:
		return "unknown"
	}
}

// Resume loads each incomplete run's Outcome, logs its recorded stage, and
// returns how many loaded; it does not return the Outcomes or re-run the
// pipeline itself. Runs that no longer exist by the time Resume is called
// (raced delete) are skipped, not errored.
func (rs *RecoveryService) Resume() (int, error) {
	incomplete, err := rs.FindIncomplete()
	if err != nil {
		return 0, err
	}
	if len(incomplete) == 0 {
		rs.logger.Info("recovery: no incomplete runs found")
		return 0, nil
	}

	rs.logger.WithField("count", len(incomplete)).Info("recovery: found incomplete runs")

	resumed := 0
	for _, run := range incomplete {
		outcome, err := rs.outcomes.GetByRunID(run.RunID)
		if err != nil {
			rs.logger.WithField("run_id", run.RunID).WithError(err).Error("recovery: failed to load outcome")
			continue
		}
		if outcome == nil {
			continue
		}
		rs.logger.WithField("run_id", run.RunID).WithField("stage", run.Stage).Info("recovery: run ready to resume")
		resumed++
	}
	return resumed, nil
}
