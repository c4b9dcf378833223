// Package section implements the PE-only pre-scan that narrows the
// reducer's search space to the sections of an executable that
// independently or jointly cause detection.
package section

import (
	"context"
	"strings"

	"github.com/an0x03e8/avred/buffer"
	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/model"
	"github.com/an0x03e8/avred/oracle"
	"github.com/an0x03e8/avred/reducer"
)

// Options mirrors the PE analyzer configuration recognized by the core
// (spec §6): isolate mode vs. zero mode, pre-removal of known non-code
// sections, and whether to skip .text during per-section reduction.
type Options struct {
	Isolate    bool
	Remove     bool
	IgnoreText bool
}

// Result is the section analyzer's output: the located matches plus the
// scanner-info tags describing which code path produced them.
type Result struct {
	Matches     model.MatchSet
	ScannerInfo []string
}

// Analyze runs the section-aware pre-scan over pf, narrowing to the
// detected sections before handing each off to the reducer, with the
// fallback-to-flat-scan policy from spec §4.5.
func Analyze(ctx context.Context, pf *fileformat.PEFile, o oracle.Oracle, opts Options) (Result, error) {
	result := Result{}

	working := pf.Payload().Clone()
	sections := pf.Sections()

	if opts.Remove {
		if err := fileformat.Hide(working, sections, "Resources"); err != nil {
			return result, err
		}
		if err := fileformat.Hide(working, sections, "VersionInfo"); err != nil {
			return result, err
		}
		result.ScannerInfo = append(result.ScannerInfo, "remove-sections")
	}

	var detected []model.Section
	var err error
	if opts.Isolate {
		detected, err = findDetectedSectionsIsolate(ctx, working, sections, pf.Filename(), o)
		result.ScannerInfo = append(result.ScannerInfo, "isolate-sections")
	} else {
		detected, err = findDetectedSections(ctx, working, sections, pf.Filename(), o)
		result.ScannerInfo = append(result.ScannerInfo, "zero-sections")
	}
	if err != nil {
		return result, err
	}

	baseAdapter := fileformat.NewRawFile(pf.Filename(), working.Bytes())
	red := reducer.New(baseAdapter, o)

	if len(detected) == 0 {
		matches, err := red.Scan(ctx, 0, working.Len())
		if err != nil {
			return result, err
		}
		result.Matches = matches
		result.ScannerInfo = append(result.ScannerInfo, "flat-scan1")
		return result, nil
	}

	var matches model.MatchSet
	for _, s := range detected {
		if opts.IgnoreText && strings.EqualFold(s.Name, ".text") {
			continue
		}
		m, err := red.Scan(ctx, s.FileOffset, s.FileOffset+s.Size)
		if err != nil {
			return result, err
		}
		matches = append(matches, m...)
	}

	if len(matches) > 0 {
		result.Matches = model.MergeOverlapping(matches)
		result.ScannerInfo = append(result.ScannerInfo, "section-scan")
		return result, nil
	}

	matches, err = red.Scan(ctx, 0, working.Len())
	if err != nil {
		return result, err
	}
	result.Matches = matches
	result.ScannerInfo = append(result.ScannerInfo, "flat-scan2")
	return result, nil
}

func findDetectedSections(ctx context.Context, working *buffer.Buffer, sections []model.Section, filename string, o oracle.Oracle) ([]model.Section, error) {
	var detected []model.Section
	for _, s := range sections {
		if !s.Scannable {
			continue
		}
		clone := working.Clone()
		if err := fileformat.Hide(clone, sections, s.Name); err != nil {
			return nil, err
		}
		ok, err := o.Detects(ctx, clone.Bytes(), filename)
		if err != nil {
			return nil, err
		}
		if !ok {
			detected = append(detected, s)
		}
	}
	return detected, nil
}

func findDetectedSectionsIsolate(ctx context.Context, working *buffer.Buffer, sections []model.Section, filename string, o oracle.Oracle) ([]model.Section, error) {
	var detected []model.Section
	for _, s := range sections {
		if !s.Scannable {
			continue
		}
		clone := working.Clone()
		if err := fileformat.HideAllExcept(clone, sections, s.Name); err != nil {
			return nil, err
		}
		ok, err := o.Detects(ctx, clone.Bytes(), filename)
		if err != nil {
			return nil, err
		}
		if ok {
			detected = append(detected, s)
		}
	}
	return detected, nil
}
