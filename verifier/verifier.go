// Package verifier classifies located matches as GOOD/OK/BAD by mutating
// them independently, incrementally, and decrementally, and derives the
// whole-file Appraisal from the resulting conclusions.
package verifier

import (
	"context"

	"github.com/an0x03e8/avred/buffer"
	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/oracle"
)

const modificationWindow = 8

// Verify runs the full verification suite over matches and derives their
// per-match conclusions.
func Verify(ctx context.Context, adapter fileformat.Adapter, matches model.MatchSet, o oracle.Oracle) (model.Verification, error) {
	entries, err := runVerifications(ctx, adapter, matches, o)
	if err != nil {
		return model.Verification{}, err
	}
	return model.Verification{
		Entries:     entries,
		Conclusions: analyze(entries),
	}, nil
}

func runVerifications(ctx context.Context, adapter fileformat.Adapter, matches model.MatchSet, o oracle.Oracle) ([]model.VerificationEntry, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	var entries []model.VerificationEntry

	middle, err := isolatedRun(ctx, adapter, matches, o, model.ModifyMiddle8)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderIsolated, model.ModifyMiddle8, middle))

	thirds, err := isolatedRun(ctx, adapter, matches, o, model.ModifyThirds8)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderIsolated, model.ModifyThirds8, thirds))

	full, err := isolatedRun(ctx, adapter, matches, o, model.ModifyFull)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderIsolated, model.ModifyFull, full))

	if len(matches) == 1 {
		return entries, nil
	}

	incMiddle, err := incrementalRun(ctx, adapter, matches, o, model.ModifyMiddle8, false)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderIncremental, model.ModifyMiddle8, incMiddle))

	incFull, err := incrementalRun(ctx, adapter, matches, o, model.ModifyFull, false)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderIncremental, model.ModifyFull, incFull))

	decFull, err := incrementalRun(ctx, adapter, matches, o, model.ModifyFull, true)
	if err != nil {
		return nil, err
	}
	entries = append(entries, newEntry(len(entries), model.OrderDecremental, model.ModifyFull, decFull))

	return entries, nil
}

func newEntry(index int, order model.TestMatchOrder, modify model.TestMatchModify, tests []model.MatchTest) model.VerificationEntry {
	return model.VerificationEntry{Index: index, Order: order, Modify: modify, MatchTests: tests}
}

// isolatedRun applies modify to a fresh copy of the payload for each match
// independently.
func isolatedRun(ctx context.Context, adapter fileformat.Adapter, matches model.MatchSet, o oracle.Oracle, modify model.TestMatchModify) ([]model.MatchTest, error) {
	tests := make([]model.MatchTest, 0, len(matches))
	for _, m := range matches {
		if !fitsWindow(m, modify) {
			tests = append(tests, model.MatchTest{MatchIdx: m.Idx, Result: model.ScanResultNotScanned})
			continue
		}
		clone := adapter.Payload().Clone()
		if err := applyModification(clone, m, modify); err != nil {
			return nil, err
		}
		result, err := scanAndClassify(ctx, adapter, clone, o)
		if err != nil {
			return nil, err
		}
		tests = append(tests, model.MatchTest{MatchIdx: m.Idx, Result: result})
	}
	return tests, nil
}

// incrementalRun accumulates modifications on a single shared copy, in
// match order (or reverse, for decremental), and realigns the results to
// the original match order when reversed.
func incrementalRun(ctx context.Context, adapter fileformat.Adapter, matches model.MatchSet, o oracle.Oracle, modify model.TestMatchModify, reverse bool) ([]model.MatchTest, error) {
	order := make(model.MatchSet, len(matches))
	copy(order, matches)
	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	clone := adapter.Payload().Clone()
	tests := make([]model.MatchTest, 0, len(order))
	for _, m := range order {
		if !fitsWindow(m, modify) {
			tests = append(tests, model.MatchTest{MatchIdx: m.Idx, Result: model.ScanResultNotScanned})
			continue
		}
		if err := applyModification(clone, m, modify); err != nil {
			return nil, err
		}
		result, err := scanAndClassify(ctx, adapter, clone, o)
		if err != nil {
			return nil, err
		}
		tests = append(tests, model.MatchTest{MatchIdx: m.Idx, Result: result})
	}

	if reverse {
		for i, j := 0, len(tests)-1; i < j; i, j = i+1, j-1 {
			tests[i], tests[j] = tests[j], tests[i]
		}
	}
	return tests, nil
}

func fitsWindow(m model.Match, modify model.TestMatchModify) bool {
	switch modify {
	case model.ModifyMiddle8:
		return m.Size >= 2*modificationWindow
	case model.ModifyThirds8:
		return m.Size >= 3*modificationWindow
	default: // FULL has no minimum beyond being a valid match
		return true
	}
}

func applyModification(buf *buffer.Buffer, m model.Match, modify model.TestMatchModify) error {
	switch modify {
	case model.ModifyMiddle8:
		offset := m.Offset + m.Size/2 - modificationWindow/2
		return buf.Fill(offset, modificationWindow, buffer.FillLowEntropy)
	case model.ModifyThirds8:
		offset1 := m.Offset + (m.Size/3)*1 - modificationWindow/2
		offset2 := m.Offset + (m.Size/3)*2 - modificationWindow/2
		if err := buf.Fill(offset1, modificationWindow, buffer.FillLowEntropy); err != nil {
			return err
		}
		return buf.Fill(offset2, modificationWindow, buffer.FillLowEntropy)
	default: // FULL
		return buf.Fill(m.Offset, m.Size, buffer.FillLowEntropy)
	}
}

func scanAndClassify(ctx context.Context, adapter fileformat.Adapter, payload *buffer.Buffer, o oracle.Oracle) (model.ScanResult, error) {
	materialized, err := adapter.MaterializeWith(payload)
	if err != nil {
		return "", err
	}
	detected, err := o.Detects(ctx, materialized, adapter.Filename())
	if err != nil {
		return "", err
	}
	if detected {
		return model.ScanResultDetected, nil
	}
	return model.ScanResultNotDetected, nil
}

// analyze derives a GOOD/OK/BAD verdict per match from the ISOLATED runs.
func analyze(entries []model.VerificationEntry) model.MatchConclusion {
	if len(entries) == 0 {
		return model.MatchConclusion{}
	}

	middle := findRun(entries, model.OrderIsolated, model.ModifyMiddle8)
	full := findRun(entries, model.OrderIsolated, model.ModifyFull)

	statuses := make([]model.VerifyStatus, len(entries[0].MatchTests))
	for idx := range statuses {
		status := model.VerifyBad
		if middle != nil && middle[idx].Result == model.ScanResultNotDetected {
			status = model.VerifyGood
		} else if full != nil && full[idx].Result == model.ScanResultNotDetected {
			status = model.VerifyOK
		}
		statuses[idx] = status
	}
	return model.MatchConclusion{VerifyStatus: statuses}
}

func findRun(entries []model.VerificationEntry, order model.TestMatchOrder, modify model.TestMatchModify) []model.MatchTest {
	for _, e := range entries {
		if e.Order == order && e.Modify == modify {
			return e.MatchTests
		}
	}
	return nil
}

// Appraise derives the whole-file Appraisal from a MatchConclusion, per
// spec §4.7.
func Appraise(matches model.MatchSet, conclusion model.MatchConclusion) model.Appraisal {
	if len(matches) == 0 {
		return model.AppraisalUnknown
	}

	all := len(conclusion.VerifyStatus)
	bad := conclusion.Count(model.VerifyBad)
	good := conclusion.Count(model.VerifyGood)
	ok := conclusion.Count(model.VerifyOK)

	switch {
	case bad == all:
		return model.AppraisalOrSig
	case good+ok == 1:
		return model.AppraisalOne
	case good+ok > 1:
		return model.AppraisalAndSig
	default:
		return model.AppraisalUnknown
	}
}
