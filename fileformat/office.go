package fileformat

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yeka/zip"

	"github.com/an0x03e8/avred/buffer"
	"github.com/an0x03e8/avred/errors"
)

// MacroPath is the ZIP entry inside an Office document holding the VBA
// project stream the reducer mutates.
const MacroPath = "word/vbaProject.bin"

// OfficeFile is the adapter for ZIP-packaged Office documents. The payload
// is the macro stream; materializing re-zips the container with every
// other entry byte-preserved.
type OfficeFile struct {
	filename string
	original []byte
	payload  *buffer.Buffer
}

// NewOfficeFile extracts the macro stream at MacroPath from a ZIP-packaged
// document and builds an OfficeFile adapter over it.
func NewOfficeFile(filename string, data []byte) (*OfficeFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.New(errors.CategoryUnsupportedFileType, fmt.Errorf("open office zip: %w", err))
	}

	for _, zf := range zr.File {
		if zf.Name != MacroPath {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.New(errors.CategoryUnsupportedFileType, fmt.Errorf("open %s: %w", MacroPath, err))
		}
		macro, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.New(errors.CategoryUnsupportedFileType, fmt.Errorf("read %s: %w", MacroPath, err))
		}
		return &OfficeFile{
			filename: filename,
			original: append([]byte(nil), data...),
			payload:  buffer.New(macro),
		}, nil
	}

	return nil, errors.Newf(errors.CategoryUnsupportedFileType, "office file %s has no %s entry", filename, MacroPath)
}

func (f *OfficeFile) Payload() *buffer.Buffer {
	return f.payload
}

func (f *OfficeFile) AsOracleBytes() []byte {
	return f.original
}

// MaterializeWith rebuilds the ZIP container in the original entry order,
// replacing the macro entry's content with payload.Bytes() and preserving
// every other entry's name and content unchanged.
func (f *OfficeFile) MaterializeWith(payload *buffer.Buffer) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(f.original), int64(len(f.original)))
	if err != nil {
		return nil, fmt.Errorf("office materialize: reopen original zip: %w", err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	for _, zf := range zr.File {
		if zf.Name == MacroPath {
			w, err := zw.Create(MacroPath)
			if err != nil {
				return nil, fmt.Errorf("office materialize: create macro entry: %w", err)
			}
			if _, err := w.Write(payload.Bytes()); err != nil {
				return nil, fmt.Errorf("office materialize: write macro entry: %w", err)
			}
			continue
		}
		w, err := zw.CreateHeader(&zf.FileHeader)
		if err != nil {
			return nil, fmt.Errorf("office materialize: create entry %s: %w", zf.Name, err)
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("office materialize: open entry %s: %w", zf.Name, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("office materialize: copy entry %s: %w", zf.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("office materialize: close writer: %w", err)
	}

	return out.Bytes(), nil
}

func (f *OfficeFile) Filename() string {
	return f.filename
}
