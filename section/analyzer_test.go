package section

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/an0x03e8/avred/fileformat"
	"github.com/an0x03e8/avred/oracle"
)

// buildTwoSectionPE assembles a minimal two-section PE32 image so the
// section analyzer has more than one candidate to choose between.
func buildTwoSectionPE(textData, rdataData []byte) []byte {
	const (
		peHeaderOffset = 128
		textPointer    = 512
	)
	rdataPointer := textPointer + len(textData)
	for rdataPointer%16 != 0 {
		rdataPointer++
	}

	var buf bytes.Buffer

	dos := make([]byte, peHeaderOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], peHeaderOffset)
	buf.Write(dos)

	buf.WriteString("PE\x00\x00")

	binary.Write(&buf, binary.LittleEndian, uint16(0x014c))
	binary.Write(&buf, binary.LittleEndian, uint16(2)) // NumberOfSections
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint16(224))
	binary.Write(&buf, binary.LittleEndian, uint16(0x0102))

	binary.Write(&buf, binary.LittleEndian, uint16(0x10b))
	buf.WriteByte(0)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x2000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x400000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x200))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0x4000))
	binary.Write(&buf, binary.LittleEndian, uint32(512))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint16(3))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(0x100000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x100000))
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	for i := 0; i < 16; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		binary.Write(&buf, binary.LittleEndian, uint32(0))
	}

	writeSectionHeader := func(name string, size, pointer int) {
		n := make([]byte, 8)
		copy(n, name)
		buf.Write(n)
		binary.Write(&buf, binary.LittleEndian, uint32(size))
		binary.Write(&buf, binary.LittleEndian, uint32(0x1000))
		binary.Write(&buf, binary.LittleEndian, uint32(size))
		binary.Write(&buf, binary.LittleEndian, uint32(pointer))
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		binary.Write(&buf, binary.LittleEndian, uint32(0))
		binary.Write(&buf, binary.LittleEndian, uint16(0))
		binary.Write(&buf, binary.LittleEndian, uint16(0))
		binary.Write(&buf, binary.LittleEndian, uint32(0x60000020))
	}
	writeSectionHeader(".text", len(textData), textPointer)
	writeSectionHeader(".rdata", len(rdataData), rdataPointer)

	for buf.Len() < textPointer {
		buf.WriteByte(0)
	}
	buf.Write(textData)
	for buf.Len() < rdataPointer {
		buf.WriteByte(0)
	}
	buf.Write(rdataData)

	return buf.Bytes()
}

func TestAnalyzeZeroModeFindsSectionContainingPattern(t *testing.T) {
	textData := bytes.Repeat([]byte{0x90}, 256)
	rdataData := bytes.Repeat([]byte{0x00}, 256)
	copy(rdataData[64:], []byte("EVIL"))

	raw := buildTwoSectionPE(textData, rdataData)
	pf, err := fileformat.NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}

	o := oracle.NewPattern([]byte("EVIL"))
	result, err := Analyze(context.Background(), pf, o, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(result.Matches) == 0 {
		t.Fatal("expected at least one match")
	}
	// all matches must fall within the .rdata section's file range
	rdataSection := pf.Sections()[1]
	for _, m := range result.Matches {
		if m.Start() < rdataSection.FileOffset || m.End() > rdataSection.FileOffset+rdataSection.Size {
			t.Fatalf("match %+v falls outside .rdata section %+v", m, rdataSection)
		}
	}

	hasSectionScanTag := false
	for _, tag := range result.ScannerInfo {
		if tag == "section-scan" {
			hasSectionScanTag = true
		}
	}
	if !hasSectionScanTag {
		t.Fatalf("expected section-scan tag, got %v", result.ScannerInfo)
	}
}

func TestAnalyzeFallsBackToFlatScanWhenNoSectionDetected(t *testing.T) {
	textData := bytes.Repeat([]byte{0x90}, 256)
	rdataData := bytes.Repeat([]byte{0x00}, 256)

	raw := buildTwoSectionPE(textData, rdataData)
	// Plant the pattern in the DOS stub, outside every section: hiding
	// either section leaves detection intact, so zero mode detects none.
	copy(raw[64:], []byte("EVIL"))
	pf, err := fileformat.NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}

	o := oracle.NewPattern([]byte("EVIL"))
	result, err := Analyze(context.Background(), pf, o, Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	hasFlatScan1 := false
	for _, tag := range result.ScannerInfo {
		if tag == "flat-scan1" {
			hasFlatScan1 = true
		}
	}
	if !hasFlatScan1 {
		t.Fatalf("expected flat-scan1 fallback tag, got %v", result.ScannerInfo)
	}
}
