// Package model defines the data types shared across the signature
// localization pipeline: matches, verification entries, and the run-level
// Outcome record.
package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Appraisal is the whole-file verdict derived by the orchestrator.
type Appraisal string

const (
	AppraisalUnknown    Appraisal = "Unknown"
	AppraisalUndetected Appraisal = "Undetected"
	AppraisalHash       Appraisal = "Hash"
	AppraisalOne        Appraisal = "One"
	AppraisalOrSig      Appraisal = "Or-Signature"
	AppraisalAndSig     Appraisal = "And-Signature"
)

// FillType selects the fill strategy used by a verification or reduction
// modification. Mirrors buffer.FillStrategy but kept distinct so this
// package has no dependency on buffer.
type FillType string

const (
	FillTypeNull        FillType = "null"
	FillTypeSpace       FillType = "space"
	FillTypeHighEntropy FillType = "highentropy"
	FillTypeLowEntropy  FillType = "lowentropy"
)

// Match is a half-open byte interval believed to contain a signature.
type Match struct {
	Idx    int
	Offset int
	Size   int
}

func (m Match) Start() int { return m.Offset }
func (m Match) End() int   { return m.Offset + m.Size }

// MatchSet is an ordered, non-overlapping collection of matches.
type MatchSet []Match

// Sort orders matches by start offset.
func (ms MatchSet) Sort() {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Offset < ms[j].Offset })
}

// MergeOverlapping sorts ms and merges adjacent or overlapping intervals,
// reassigning sequential indices to the result.
func MergeOverlapping(ms MatchSet) MatchSet {
	if len(ms) == 0 {
		return ms
	}
	sorted := make(MatchSet, len(ms))
	copy(sorted, ms)
	sorted.Sort()

	merged := make(MatchSet, 0, len(sorted))
	cur := sorted[0]
	for _, m := range sorted[1:] {
		if m.Offset <= cur.End() {
			if m.End() > cur.End() {
				cur.Size = m.End() - cur.Offset
			}
			continue
		}
		merged = append(merged, cur)
		cur = m
	}
	merged = append(merged, cur)

	for i := range merged {
		merged[i].Idx = i
	}
	return merged
}

// ScanResult is the per-cell outcome of one oracle call during verification.
type ScanResult string

const (
	ScanResultNotScanned ScanResult = "NOT_SCANNED"
	ScanResultDetected    ScanResult = "DETECTED"
	ScanResultNotDetected ScanResult = "NOT_DETECTED"
)

// TestMatchOrder is the traversal order of a verification run.
type TestMatchOrder string

const (
	OrderIsolated    TestMatchOrder = "ISOLATED"
	OrderIncremental TestMatchOrder = "INCREMENTAL"
	OrderDecremental TestMatchOrder = "DECREMENTAL"
)

// TestMatchModify is the modification window applied per match.
type TestMatchModify string

const (
	ModifyMiddle8 TestMatchModify = "MIDDLE8"
	ModifyThirds8 TestMatchModify = "THIRDS8"
	ModifyFull    TestMatchModify = "FULL"
)

// MatchTest is one cell of a VerificationEntry's results, aligned by match
// index.
type MatchTest struct {
	MatchIdx int
	Result   ScanResult
}

// VerificationEntry is one full pass over the match set under a given
// order/modification combination.
type VerificationEntry struct {
	Index      int
	Order      TestMatchOrder
	Modify     TestMatchModify
	MatchTests []MatchTest
}

// VerifyStatus is the per-match verdict concluded from the ISOLATED runs.
type VerifyStatus string

const (
	VerifyGood VerifyStatus = "GOOD"
	VerifyOK   VerifyStatus = "OK"
	VerifyBad  VerifyStatus = "BAD"
)

// MatchConclusion holds one VerifyStatus per match, in match order.
type MatchConclusion struct {
	VerifyStatus []VerifyStatus
}

// Count returns how many matches concluded with the given status.
func (mc MatchConclusion) Count(status VerifyStatus) int {
	n := 0
	for _, s := range mc.VerifyStatus {
		if s == status {
			n++
		}
	}
	return n
}

// Verification is the full verifier output: the runs performed plus the
// derived per-match conclusions.
type Verification struct {
	Entries     []VerificationEntry
	Conclusions MatchConclusion
}

// Section describes one entry of a PE section table.
type Section struct {
	Name          string
	FileOffset    int
	Size          int
	VirtualAddr   int
	Scannable     bool
}

// FileInfo is identity metadata for a scanned file.
type FileInfo struct {
	Name string
	Size int
	Hash string
}

// Outcome is the aggregate record produced by one orchestrator run.
type Outcome struct {
	RunID   string
	File    FileInfo
	Matches MatchSet

	Verification Verification
	Appraisal    Appraisal

	IsScanned  bool
	IsVerified bool
	IsDetected bool

	ScannerName string
	ScannerInfo string
	ScanTime    time.Time
}

// NewOutcome creates an Outcome with a fresh run identity and all staging
// flags false.
func NewOutcome(file FileInfo) *Outcome {
	return &Outcome{
		RunID:     uuid.NewString(),
		File:      file,
		Appraisal: AppraisalUnknown,
	}
}
