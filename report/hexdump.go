// Package report renders an Outcome's matches for human consumption: a
// classic offset/hex/ASCII dump per match with charset detection for any
// text a match happens to contain, and a one-line-per-match summary
// colorized by verification verdict.
package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/an0x03e8/avred/model"
)

// maxHexdumpSize caps how much of an oversized match gets rendered, the
// same ceiling the original tool used to avoid flooding the terminal.
const maxHexdumpSize = 2048

const bytesPerLine = 16

// Hexdump renders data as offset/hex/ASCII rows, each row's offset
// prefixed by base.
func Hexdump(data []byte, base int) string {
	if len(data) > maxHexdumpSize {
		return fmt.Sprintf("match too large (%d > %d max), not shown", len(data), maxHexdumpSize)
	}

	var lines []string
	for i := 0; i < len(data); i += bytesPerLine {
		end := i + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]

		hexParts := make([]string, len(row))
		for j, b := range row {
			hexParts[j] = fmt.Sprintf("%02X", b)
		}
		hexCol := strings.Join(hexParts, " ")

		var text strings.Builder
		for _, b := range row {
			if b >= 0x20 && b < 0x7F {
				text.WriteByte(b)
			} else {
				text.WriteByte('.')
			}
		}

		lines = append(lines, fmt.Sprintf("%08X   %-*s   %s", i+base, bytesPerLine*3, hexCol, text.String()))
	}
	return strings.Join(lines, "\n")
}

// MatchDump renders one Match's bytes from the full file, with a header,
// the hexdump body, and — whenever charset detection names a charset for
// the match bytes, whatever its confidence and including UTF-8 — a preview
// line of the bytes decoded to UTF-8.
func MatchDump(data []byte, m model.Match) string {
	end := m.End()
	if end > len(data) {
		end = len(data)
	}
	slice := data[m.Offset:end]
	header := fmt.Sprintf("[*] Signature %d between %d and %d, size %d:", m.Idx, m.Offset, m.End(), m.Size)
	body := header + "\n" + Hexdump(slice, m.Offset)

	if charset, confidence, decoded, err := DescribeCharset(slice); err == nil && charset != "" {
		body += fmt.Sprintf("\n    text (%s, confidence %d%%): %s", charset, confidence, decoded)
	}
	return body
}

// verdictColor maps a VerifyStatus to the color its summary line prints in:
// green confirms the match survived minimal tampering (GOOD), yellow means
// it only cleared a full overwrite (OK), red means it never independently
// held up (BAD).
func verdictColor(status model.VerifyStatus) *color.Color {
	switch status {
	case model.VerifyGood:
		return color.New(color.FgGreen)
	case model.VerifyOK:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// Summary renders one line per match: its byte range, size, and verdict
// (if verification has run), colorized by verdict.
func Summary(outcome *model.Outcome) string {
	var lines []string
	for i, m := range outcome.Matches {
		line := fmt.Sprintf("match %d: [%d, %d) size=%d", m.Idx, m.Start(), m.End(), m.Size)
		if i < len(outcome.Verification.Conclusions.VerifyStatus) {
			status := outcome.Verification.Conclusions.VerifyStatus[i]
			line = verdictColor(status).Sprintf("%s verdict=%s", line, status)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
