package verifier

import (
	"bytes"
	"context"
	"testing"

	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/oracle"
)

func fillerPayload(size int) []byte {
	return bytes.Repeat([]byte{0x90}, size)
}

func TestVerifySinglePatternYieldsOne(t *testing.T) {
	payload := fillerPayload(4096)
	copy(payload[1000:], []byte("EVIL"))

	adapter := fileformat.NewRawFile("test.bin", payload)
	o := oracle.NewPattern([]byte("EVIL"))

	matches := model.MatchSet{{Idx: 0, Offset: 950, Size: 100}}
	v, err := Verify(context.Background(), adapter, matches, o)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// MIDDLE8 fills the 8 bytes [996,1004) around the match's center, which
	// covers the pattern at 1000-1004 and clears detection, so the match
	// grades GOOD; ISOLATED/FULL blanks the whole range and would clear it
	// too. Either way it must not grade BAD.
	if v.Conclusions.Count(model.VerifyBad) != 0 && v.Conclusions.Count(model.VerifyGood)+v.Conclusions.Count(model.VerifyOK) == 0 {
		t.Fatalf("expected match to verify as GOOD or OK, got %+v", v.Conclusions)
	}

	appraisal := Appraise(matches, v.Conclusions)
	if appraisal != model.AppraisalOne {
		t.Fatalf("expected Appraisal One for a single verified match, got %v", appraisal)
	}
}

func TestVerifyTwoIndependentMatchesYieldsAndSig(t *testing.T) {
	payload := fillerPayload(4096)
	copy(payload[500:], []byte("EVIL"))
	copy(payload[3000:], []byte("HARM"))

	adapter := fileformat.NewRawFile("test.bin", payload)
	o := oracle.NewAnd([]byte("EVIL"), []byte("HARM"))

	matches := model.MatchSet{
		{Idx: 0, Offset: 470, Size: 60},
		{Idx: 1, Offset: 2970, Size: 60},
	}
	v, err := Verify(context.Background(), adapter, matches, o)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(v.Entries) != 6 {
		t.Fatalf("expected all 6 verification runs for a 2-match set, got %d", len(v.Entries))
	}

	appraisal := Appraise(matches, v.Conclusions)
	if appraisal != model.AppraisalAndSig {
		t.Fatalf("expected Appraisal And-Signature, got %v", appraisal)
	}
}

func TestVerifySkipsIncrementalRunsForSingleMatch(t *testing.T) {
	payload := fillerPayload(4096)
	copy(payload[1000:], []byte("EVIL"))

	adapter := fileformat.NewRawFile("test.bin", payload)
	o := oracle.NewPattern([]byte("EVIL"))

	matches := model.MatchSet{{Idx: 0, Offset: 950, Size: 100}}
	v, err := Verify(context.Background(), adapter, matches, o)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(v.Entries) != 3 {
		t.Fatalf("expected only the 3 ISOLATED runs for a single match, got %d", len(v.Entries))
	}
}

func TestVerifyNotScannedBelowModificationWindow(t *testing.T) {
	payload := fillerPayload(4096)
	copy(payload[1000:], []byte("EV"))

	adapter := fileformat.NewRawFile("test.bin", payload)
	o := oracle.NewPattern([]byte("EV"))

	matches := model.MatchSet{
		{Idx: 0, Offset: 1000, Size: 2},
		{Idx: 1, Offset: 3000, Size: 2},
	}
	v, err := Verify(context.Background(), adapter, matches, o)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	middle := findRun(v.Entries, model.OrderIsolated, model.ModifyMiddle8)
	for _, mt := range middle {
		if mt.Result != model.ScanResultNotScanned {
			t.Fatalf("expected NOT_SCANNED for a match smaller than the modification window, got %+v", mt)
		}
	}
}

func TestAppraiseUnknownWithNoMatches(t *testing.T) {
	appraisal := Appraise(nil, model.MatchConclusion{})
	if appraisal != model.AppraisalUnknown {
		t.Fatalf("expected Unknown appraisal for an empty match set, got %v", appraisal)
	}
}
