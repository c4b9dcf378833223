package notify

import (
	"strings"
	"testing"

	"github.com/an0x03e8/avred/model"
)

func TestFormatCompletionMessageUndetected(t *testing.T) {
	outcome := model.NewOutcome(model.FileInfo{Name: "clean.bin"})
	outcome.Appraisal = model.AppraisalUndetected
	outcome.ScannerName = "amsi"

	msg := formatCompletionMessage(outcome)
	if !strings.Contains(msg, "clean.bin") || !strings.Contains(msg, "Not detected") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestFormatCompletionMessageHash(t *testing.T) {
	outcome := model.NewOutcome(model.FileInfo{Name: "hashed.bin"})
	outcome.Appraisal = model.AppraisalHash

	msg := formatCompletionMessage(outcome)
	if !strings.Contains(msg, "hash signature") {
		t.Fatalf("expected hash-specific message, got %q", msg)
	}
}

func TestFormatCompletionMessageWithMatches(t *testing.T) {
	outcome := model.NewOutcome(model.FileInfo{Name: "malware.bin"})
	outcome.Appraisal = model.AppraisalOne
	outcome.Matches = model.MatchSet{{Idx: 0, Offset: 10, Size: 5}}

	msg := formatCompletionMessage(outcome)
	if !strings.Contains(msg, "Matches: 1") {
		t.Fatalf("expected match count in message, got %q", msg)
	}
}
