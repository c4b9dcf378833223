package report

import (
	"fmt"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DescribeCharset runs charset detection over a match's raw bytes and, for
// any detected charset that x/text recognizes, returns the bytes decoded
// from it to UTF-8 alongside the detected name and confidence. This only matters for Office macro streams
// and other text-bearing matches; binary matches typically detect as
// unrecognizable and pass through unchanged.
func DescribeCharset(data []byte) (charset string, confidence int, decoded string, err error) {
	result, detectErr := chardet.NewTextDetector().DetectBest(data)
	if detectErr != nil || result == nil {
		return "", 0, string(data), nil
	}

	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		// Detected a charset name x/text doesn't recognize (e.g. a chardet
		// label with no htmlindex entry); fall back to the raw bytes.
		return result.Charset, result.Confidence, string(data), nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return result.Charset, result.Confidence, "", fmt.Errorf("transcode to utf-8: %w", err)
	}
	return result.Charset, result.Confidence, string(out), nil
}
