package fileformat

import (
	"bytes"
	"debug/pe"
	"fmt"

	"github.com/an0x03e8/avred/buffer"
	"github.com/an0x03e8/avred/errors"
	"github.com/an0x03e8/avred/model"
)

// imageDirectoryEntryComDescriptor is the data-directory index holding the
// CLR runtime header, per the PE/COFF specification.
const imageDirectoryEntryComDescriptor = 14

// PEFile is the adapter for PE/COFF executables. The payload is the whole
// file; sections are addressed directly by file offset within it.
type PEFile struct {
	filename string
	original []byte
	payload  *buffer.Buffer
	sections []model.Section
	isDotNet bool
}

// NewPEFile parses data as a PE/COFF executable and builds its section
// table. It returns an UnsupportedFileType error if data does not parse.
func NewPEFile(filename string, data []byte) (*PEFile, error) {
	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New(errors.CategoryUnsupportedFileType, fmt.Errorf("parse PE: %w", err))
	}
	defer pf.Close()

	var sizeOfHeaders uint32
	isDotNet := false
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		sizeOfHeaders = oh.SizeOfHeaders
		if len(oh.DataDirectory) > imageDirectoryEntryComDescriptor {
			isDotNet = oh.DataDirectory[imageDirectoryEntryComDescriptor].Size > 0
		}
	case *pe.OptionalHeader64:
		sizeOfHeaders = oh.SizeOfHeaders
		if len(oh.DataDirectory) > imageDirectoryEntryComDescriptor {
			isDotNet = oh.DataDirectory[imageDirectoryEntryComDescriptor].Size > 0
		}
	}

	sections := make([]model.Section, 0, len(pf.Sections))
	for _, s := range pf.Sections {
		if s.Size == 0 {
			continue
		}
		// A section whose raw data starts inside the header region
		// overlaps the DOS/COFF/optional header and section table itself;
		// mutating it would corrupt the file for reasons unrelated to any
		// signature it might carry, so it is excluded from analysis.
		scannable := uint32(s.Offset) >= sizeOfHeaders
		sections = append(sections, model.Section{
			Name:        s.Name,
			FileOffset:  int(s.Offset),
			Size:        int(s.Size),
			VirtualAddr: int(s.VirtualAddress),
			Scannable:   scannable,
		})
	}

	return &PEFile{
		filename: filename,
		original: append([]byte(nil), data...),
		payload:  buffer.New(data),
		sections: sections,
		isDotNet: isDotNet,
	}, nil
}

func (f *PEFile) Payload() *buffer.Buffer {
	return f.payload
}

func (f *PEFile) AsOracleBytes() []byte {
	return f.original
}

func (f *PEFile) MaterializeWith(payload *buffer.Buffer) ([]byte, error) {
	return payload.Bytes(), nil
}

func (f *PEFile) Filename() string {
	return f.filename
}

// Sections returns the parsed section table, file-offset order as reported
// by the PE header.
func (f *PEFile) Sections() []model.Section {
	return f.sections
}

// IsDotNet reports whether the CLR runtime header directory is populated.
func (f *PEFile) IsDotNet() bool {
	return f.isDotNet
}

func (f *PEFile) sectionByName(name string) (model.Section, bool) {
	for _, s := range f.sections {
		if s.Name == name {
			return s, true
		}
	}
	return model.Section{}, false
}

// Hide zeroes the named section's bytes in buf. It is a no-op if the
// section does not exist or is not scannable.
func Hide(buf *buffer.Buffer, sections []model.Section, name string) error {
	for _, s := range sections {
		if s.Name != name || !s.Scannable {
			continue
		}
		if err := buf.Fill(s.FileOffset, s.Size, buffer.FillNull); err != nil {
			return fmt.Errorf("hide section %q: %w", name, err)
		}
	}
	return nil
}

// HideAllExcept zeroes every scannable section other than name.
func HideAllExcept(buf *buffer.Buffer, sections []model.Section, name string) error {
	for _, s := range sections {
		if s.Name == name || !s.Scannable {
			continue
		}
		if err := buf.Fill(s.FileOffset, s.Size, buffer.FillNull); err != nil {
			return fmt.Errorf("hide-all-except, hiding %q: %w", s.Name, err)
		}
	}
	return nil
}

// HideSection zeroes a single named section in buf, using this PEFile's
// section table; the PEFile's own payload is left unchanged.
func (f *PEFile) HideSection(buf *buffer.Buffer, name string) error {
	return Hide(buf, f.sections, name)
}

// HideAllSectionsExcept zeroes every section but name on the given buffer.
func (f *PEFile) HideAllSectionsExcept(buf *buffer.Buffer, name string) error {
	return HideAllExcept(buf, f.sections, name)
}
