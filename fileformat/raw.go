package fileformat

import "github.com/an0x03e8/avred/buffer"

// RawFile is the adapter for files where the scanned content is the whole
// file: the payload and the oracle-visible bytes coincide.
type RawFile struct {
	filename string
	original []byte
	payload  *buffer.Buffer
}

// NewRawFile builds a RawFile adapter over data, displayed to the oracle
// under filename.
func NewRawFile(filename string, data []byte) *RawFile {
	return &RawFile{
		filename: filename,
		original: append([]byte(nil), data...),
		payload:  buffer.New(data),
	}
}

func (f *RawFile) Payload() *buffer.Buffer {
	return f.payload
}

func (f *RawFile) AsOracleBytes() []byte {
	return f.original
}

func (f *RawFile) MaterializeWith(payload *buffer.Buffer) ([]byte, error) {
	return payload.Bytes(), nil
}

func (f *RawFile) Filename() string {
	return f.filename
}
