package fileformat

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildMinimalPE assembles the smallest PE32 image debug/pe will parse: a
// DOS stub, COFF file header, PE32 optional header with 16 zeroed data
// directories, and one section named sectionName holding sectionData, with
// its raw data placed right after the headers (SizeOfHeaders=512).
func buildMinimalPE(sectionName string, sectionData []byte) []byte {
	return buildMinimalPEAt(sectionName, sectionData, 512)
}

// buildMinimalPEAt is buildMinimalPE with an overridable
// PointerToRawData, so tests can place a section's recorded raw-data
// offset before SizeOfHeaders (512) to exercise the header-overlap
// scannable check.
func buildMinimalPEAt(sectionName string, sectionData []byte, pointerToRawData int) []byte {
	const peHeaderOffset = 128

	var buf bytes.Buffer

	dos := make([]byte, peHeaderOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], peHeaderOffset)
	buf.Write(dos)

	buf.WriteString("PE\x00\x00")

	// COFF file header (20 bytes)
	binary.Write(&buf, binary.LittleEndian, uint16(0x014c)) // Machine: i386
	binary.Write(&buf, binary.LittleEndian, uint16(1))      // NumberOfSections
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // TimeDateStamp
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // PointerToSymbolTable
	binary.Write(&buf, binary.LittleEndian, uint32(0))      // NumberOfSymbols
	binary.Write(&buf, binary.LittleEndian, uint16(224))    // SizeOfOptionalHeader
	binary.Write(&buf, binary.LittleEndian, uint16(0x0102)) // Characteristics

	// Optional header, PE32 (96 fixed bytes + 16*8 data directories = 224 bytes)
	binary.Write(&buf, binary.LittleEndian, uint16(0x10b)) // Magic: PE32
	buf.WriteByte(0)                                       // MajorLinkerVersion
	buf.WriteByte(0)                                       // MinorLinkerVersion
	binary.Write(&buf, binary.LittleEndian, uint32(0))     // SizeOfCode
	binary.Write(&buf, binary.LittleEndian, uint32(0))     // SizeOfInitializedData
	binary.Write(&buf, binary.LittleEndian, uint32(0))     // SizeOfUninitializedData
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))  // AddressOfEntryPoint
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))  // BaseOfCode
	binary.Write(&buf, binary.LittleEndian, uint32(0x2000))  // BaseOfData
	binary.Write(&buf, binary.LittleEndian, uint32(0x400000)) // ImageBase
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))  // SectionAlignment
	binary.Write(&buf, binary.LittleEndian, uint32(0x200))   // FileAlignment
	binary.Write(&buf, binary.LittleEndian, uint16(4))       // MajorOperatingSystemVersion
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // MinorOperatingSystemVersion
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // MajorImageVersion
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // MinorImageVersion
	binary.Write(&buf, binary.LittleEndian, uint16(4))       // MajorSubsystemVersion
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // MinorSubsystemVersion
	binary.Write(&buf, binary.LittleEndian, uint32(0))       // Win32VersionValue
	binary.Write(&buf, binary.LittleEndian, uint32(0x3000))  // SizeOfImage
	binary.Write(&buf, binary.LittleEndian, uint32(512))     // SizeOfHeaders
	binary.Write(&buf, binary.LittleEndian, uint32(0))       // CheckSum
	binary.Write(&buf, binary.LittleEndian, uint16(3))       // Subsystem: console
	binary.Write(&buf, binary.LittleEndian, uint16(0))       // DllCharacteristics
	binary.Write(&buf, binary.LittleEndian, uint32(0x100000)) // SizeOfStackReserve
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))  // SizeOfStackCommit
	binary.Write(&buf, binary.LittleEndian, uint32(0x100000)) // SizeOfHeapReserve
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))  // SizeOfHeapCommit
	binary.Write(&buf, binary.LittleEndian, uint32(0))       // LoaderFlags
	binary.Write(&buf, binary.LittleEndian, uint32(16))      // NumberOfRvaAndSizes
	for i := 0; i < 16; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // VirtualAddress
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // Size
	}

	// Section header (40 bytes)
	name := make([]byte, 8)
	copy(name, sectionName)
	buf.Write(name)
	binary.Write(&buf, binary.LittleEndian, uint32(len(sectionData))) // VirtualSize
	binary.Write(&buf, binary.LittleEndian, uint32(0x1000))           // VirtualAddress
	binary.Write(&buf, binary.LittleEndian, uint32(len(sectionData))) // SizeOfRawData
	binary.Write(&buf, binary.LittleEndian, uint32(pointerToRawData)) // PointerToRawData
	binary.Write(&buf, binary.LittleEndian, uint32(0))                // PointerToRelocations
	binary.Write(&buf, binary.LittleEndian, uint32(0))                // PointerToLineNumbers
	binary.Write(&buf, binary.LittleEndian, uint16(0))                // NumberOfRelocations
	binary.Write(&buf, binary.LittleEndian, uint16(0))                // NumberOfLineNumbers
	binary.Write(&buf, binary.LittleEndian, uint32(0x40000040))       // Characteristics: initialized data, readable

	for buf.Len() < pointerToRawData {
		buf.WriteByte(0)
	}
	buf.Write(sectionData)

	return buf.Bytes()
}

func TestPEFileSections(t *testing.T) {
	sectionData := bytes.Repeat([]byte{0xAA}, 64)
	raw := buildMinimalPE(".rdata", sectionData)

	pf, err := NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}

	sections := pf.Sections()
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d: %+v", len(sections), sections)
	}
	if sections[0].Name != ".rdata" {
		t.Fatalf("unexpected section name %q", sections[0].Name)
	}
	if sections[0].Size != len(sectionData) {
		t.Fatalf("unexpected section size %d", sections[0].Size)
	}
	if pf.IsDotNet() {
		t.Fatal("expected non-.NET binary")
	}
}

func TestPEFileMaterializeInvariant(t *testing.T) {
	raw := buildMinimalPE(".rdata", bytes.Repeat([]byte{0x11}, 32))
	pf, err := NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}
	materialized, err := pf.MaterializeWith(pf.Payload())
	if err != nil {
		t.Fatalf("MaterializeWith: %v", err)
	}
	if !bytes.Equal(materialized, pf.AsOracleBytes()) {
		t.Fatal("materialize(data()) != as_oracle_bytes()")
	}
}

func TestPEFileHideSection(t *testing.T) {
	sectionData := bytes.Repeat([]byte{0xAA}, 64)
	raw := buildMinimalPE(".rdata", sectionData)
	pf, err := NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}

	clone := pf.Payload().Clone()
	if err := pf.HideSection(clone, ".rdata"); err != nil {
		t.Fatalf("HideSection: %v", err)
	}

	section := pf.Sections()[0]
	hidden := clone.Range(section.FileOffset, section.FileOffset+section.Size)
	for i, b := range hidden {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after HideSection: %x", i, b)
		}
	}
}

func TestPEFileSectionOverlappingHeadersNotScannable(t *testing.T) {
	sectionData := bytes.Repeat([]byte{0xAA}, 64)
	// PointerToRawData=64 falls before SizeOfHeaders=512: the section's
	// recorded raw data overlaps the DOS/COFF/optional header region.
	raw := buildMinimalPEAt(".rsrc", sectionData, 64)

	pf, err := NewPEFile("sample.exe", raw)
	if err != nil {
		t.Fatalf("NewPEFile: %v", err)
	}

	sections := pf.Sections()
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d: %+v", len(sections), sections)
	}
	if sections[0].Scannable {
		t.Fatal("expected section overlapping the header region to be non-scannable")
	}
}

func TestPEFileRejectsNonPE(t *testing.T) {
	if _, err := NewPEFile("notpe.bin", []byte("this is not a PE file at all")); err == nil {
		t.Fatal("expected error for non-PE input")
	}
}
