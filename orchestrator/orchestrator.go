// Package orchestrator wires the file format adapter, oracle, reducer,
// section analyzer and verifier into the sequential per-file pipeline:
// quick-check, hash probe, localization, verification, appraisal.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/an0x03e8/avred/config"
	"github.com/an0x03e8/avred/errors"
	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/oracle"
	"github.com/an0x03e8/avred/reducer"
	"github.com/an0x03e8/avred/section"
	"github.com/an0x03e8/avred/verifier"
)

// Orchestrator runs the full localization pipeline over one file at a
// time against a single oracle, staging progress onto a resumable Outcome.
type Orchestrator struct {
	logger *logrus.Entry
	oracle oracle.Oracle
	peOpts section.Options
}

// New builds an Orchestrator from the PE analyzer options in cfg.
func New(logger *logrus.Entry, o oracle.Oracle, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		logger: logger,
		oracle: o,
		peOpts: section.Options{
			Isolate:    cfg.PEIsolate,
			Remove:     cfg.PERemove,
			IgnoreText: cfg.PEIgnoreText,
		},
	}
}

// Process runs every stage that outcome's staging flags say hasn't
// completed yet, so a previously interrupted run resumes rather than
// repeats work.
func (o *Orchestrator) Process(ctx context.Context, outcome *model.Outcome, data []byte, filename string) error {
	adapter, err := buildAdapter(filename, data)
	if err != nil {
		return err
	}

	if !outcome.IsScanned {
		if err := o.scan(ctx, outcome, adapter); err != nil {
			return err
		}
	}

	if !outcome.IsDetected || outcome.Appraisal == model.AppraisalHash || outcome.Appraisal == model.AppraisalUnknown {
		o.logger.WithFields(logrus.Fields{
			"is_detected": outcome.IsDetected,
			"appraisal":   outcome.Appraisal,
		}).Info("no verification needed")
		return nil
	}

	if !outcome.IsVerified {
		if err := o.verify(ctx, outcome, adapter); err != nil {
			return err
		}
	}

	return nil
}

func buildAdapter(filename string, data []byte) (fileformat.Adapter, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".exe") || strings.HasSuffix(lower, ".dll"):
		return fileformat.NewPEFile(filename, data)
	case strings.HasSuffix(lower, ".docm") || strings.HasSuffix(lower, ".xlsm") || strings.HasSuffix(lower, ".pptm"):
		return fileformat.NewOfficeFile(filename, data)
	default:
		return fileformat.NewRawFile(filename, data), nil
	}
}

func (o *Orchestrator) scan(ctx context.Context, outcome *model.Outcome, adapter fileformat.Adapter) error {
	outcome.ScanTime = time.Now()

	if err := o.oracle.Health(ctx); err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("scanner health check: %w", err))
	}

	detected, err := o.oracle.Detects(ctx, adapter.AsOracleBytes(), adapter.Filename())
	if err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("quick check: %w", err))
	}
	if !detected {
		o.logger.WithField("filename", adapter.Filename()).Info("quick check: not detected")
		outcome.IsDetected = false
		outcome.IsScanned = true
		outcome.Matches = nil
		outcome.Appraisal = model.AppraisalUndetected
		return nil
	}

	isHash, err := reducer.ProbeHash(ctx, adapter, o.oracle)
	if err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("hash probe: %w", err))
	}
	if isHash {
		o.logger.Info("quick check: signature is hash based")
		outcome.IsDetected = true
		outcome.IsScanned = true
		outcome.Matches = nil
		outcome.Appraisal = model.AppraisalHash
		return nil
	}

	o.logger.Info("quick check: detected, localizing signature")
	outcome.IsDetected = true

	matches, scannerInfo, err := o.localize(ctx, adapter)
	if err != nil {
		return err
	}

	stillDetected, err := o.oracle.Detects(ctx, adapter.AsOracleBytes(), adapter.Filename())
	if err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("post-reduction consistency check: %w", err))
	}
	if !stillDetected {
		o.logger.WithError(errors.ErrOracleInconsistent).Warn("original bytes no longer detected after reduction; abandoning run")
		outcome.Matches = nil
		outcome.Appraisal = model.AppraisalUnknown
		outcome.IsScanned = true
		return nil
	}

	o.logger.WithField("match_count", len(matches)).Info("localization complete")
	outcome.Matches = matches
	outcome.ScannerInfo = strings.Join(scannerInfo, ",")
	outcome.IsScanned = true
	return nil
}

func (o *Orchestrator) localize(ctx context.Context, adapter fileformat.Adapter) (model.MatchSet, []string, error) {
	if pf, ok := adapter.(*fileformat.PEFile); ok {
		result, err := section.Analyze(ctx, pf, o.oracle, o.peOpts)
		if err != nil {
			return nil, nil, err
		}
		return result.Matches, result.ScannerInfo, nil
	}

	red := reducer.New(adapter, o.oracle)
	matches, err := red.Scan(ctx, 0, adapter.Payload().Len())
	if err != nil {
		return nil, nil, err
	}
	// No section stage precedes this for raw/Office files, so there is no
	// flat-scan fallback to tag — matches analyzer_plain.py's empty info.
	return matches, nil, nil
}

func (o *Orchestrator) verify(ctx context.Context, outcome *model.Outcome, adapter fileformat.Adapter) error {
	o.logger.Info("performing match verification")

	if err := o.oracle.Health(ctx); err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("scanner health check: %w", err))
	}

	v, err := verifier.Verify(ctx, adapter, outcome.Matches, o.oracle)
	if err != nil {
		return errors.New(errors.CategoryOracleUnavailable, fmt.Errorf("verify: %w", err))
	}
	outcome.Verification = v
	outcome.IsVerified = true
	outcome.Appraisal = verifier.Appraise(outcome.Matches, v.Conclusions)
	return nil
}
