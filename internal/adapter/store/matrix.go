package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/mmap"
)

// MemMatrix is an embedding matrix held in process memory. It backs freshly
// built indices before (or instead of) persistence, and the bbolt store.
type MemMatrix struct {
	rows int
	dim  int
	data []float32
}

// NewMemMatrix flattens row vectors into a matrix. All rows must share the
// same dimension.
func NewMemMatrix(vectors [][]float32) (*MemMatrix, error) {
	if len(vectors) == 0 {
		return &MemMatrix{}, nil
	}
	dim := len(vectors[0])
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("row %d has dimension %d, expected %d", i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &MemMatrix{rows: len(vectors), dim: dim, data: data}, nil
}

func (m *MemMatrix) Rows() int { return m.rows }

func (m *MemMatrix) Dim() int { return m.dim }

func (m *MemMatrix) ReadRows(dst []float32, start, count int) (int, error) {
	if start < 0 || start >= m.rows {
		return 0, fmt.Errorf("row %d out of range [0,%d)", start, m.rows)
	}
	if start+count > m.rows {
		count = m.rows - start
	}
	n := copy(dst, m.data[start*m.dim:(start+count)*m.dim])
	return n / m.dim, nil
}

func (m *MemMatrix) Close() error { return nil }

// FileMatrix reads a row-major float32 little-endian matrix file through a
// memory mapping, so concurrent queries against the same index share the OS
// page cache instead of each loading the matrix into process memory.
type FileMatrix struct {
	reader *mmap.ReaderAt
	rows   int
	dim    int
}

// OpenFileMatrix maps the matrix file at path. The file size must equal
// rows*dim*4 bytes; a mismatch means the file is truncated or stale.
func OpenFileMatrix(path string, rows, dim int) (*FileMatrix, error) {
	if rows <= 0 || dim <= 0 {
		return nil, fmt.Errorf("invalid matrix shape %dx%d", rows, dim)
	}
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map matrix file: %w", err)
	}
	if r.Len() != rows*dim*4 {
		r.Close()
		return nil, fmt.Errorf("matrix file size %d does not match shape %dx%d", r.Len(), rows, dim)
	}
	return &FileMatrix{reader: r, rows: rows, dim: dim}, nil
}

func (m *FileMatrix) Rows() int { return m.rows }

func (m *FileMatrix) Dim() int { return m.dim }

func (m *FileMatrix) ReadRows(dst []float32, start, count int) (int, error) {
	if start < 0 || start >= m.rows {
		return 0, fmt.Errorf("row %d out of range [0,%d)", start, m.rows)
	}
	if start+count > m.rows {
		count = m.rows - start
	}
	if len(dst) < count*m.dim {
		return 0, fmt.Errorf("destination holds %d elements, need %d", len(dst), count*m.dim)
	}

	buf := make([]byte, count*m.dim*4)
	if _, err := m.reader.ReadAt(buf, int64(start)*int64(m.dim)*4); err != nil {
		return 0, fmt.Errorf("failed to read matrix rows: %w", err)
	}
	for i := 0; i < count*m.dim; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return count, nil
}

func (m *FileMatrix) Close() error {
	return m.reader.Close()
}

// encodeMatrix serializes row vectors into the on-disk format.
func encodeMatrix(vectors [][]float32) []byte {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	buf := make([]byte, len(vectors)*dim*4)
	off := 0
	for _, v := range vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	return buf
}
