package flash

import (
	"io"
	"io/ioutil"
	"os"
	"sync"
)

// Controller is the flash peripheral. Erase and write are triggered and
// complete asynchronously; callers poll Busy.
type Controller interface {
	io.ReaderAt
	Busy() bool
	TriggerErase(addr int) error
	TriggerWrite(addr int, data []byte) error
}

// Memory is an in-process flash Controller. Programming clears bits only,
// as on the real part, so a page must be erased before it is rewritten.
type Memory struct {
	// Latency is the number of Busy polls an operation stays busy for.
	Latency int
	// Path is where Sync persists the content, empty for none.
	Path string

	lock    sync.Mutex
	data    []byte
	pending int
	erases  int
	writes  int
}

// NewMemory creates an erased Memory of size bytes.
func NewMemory(size int) *Memory {
	m := &Memory{data: make([]byte, size)}
	fill(m.data, Erased)
	return m
}

// NewMemoryFromImage creates a Memory holding a copy of image.
func NewMemoryFromImage(image []byte) *Memory {
	return &Memory{data: append([]byte(nil), image...)}
}

// OpenMemory loads the image at path, or creates an erased Memory when the
// file does not exist. Sync writes back to the same path.
func OpenMemory(path string, size int) (*Memory, error) {
	image, err := LoadImage(path, size)
	if os.IsNotExist(err) {
		m := NewMemory(size)
		m.Path = path
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	m := NewMemoryFromImage(image)
	m.Path = path
	return m, nil
}

// Size is the flash size in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// ReadAt implements io.ReaderAt.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Busy implements Controller.
func (m *Memory) Busy() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending > 0 {
		m.pending--
		return true
	}
	return false
}

// TriggerErase implements Controller. The erase page containing addr is
// set to the erased state.
func (m *Memory) TriggerErase(addr int) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending > 0 {
		return ErrBusy
	}
	if addr < 0 || addr >= len(m.data) {
		return ErrBadAddr
	}
	start := addr - addr%ErasePageSize
	end := start + ErasePageSize
	if end > len(m.data) {
		end = len(m.data)
	}
	fill(m.data[start:end], Erased)
	m.pending = m.Latency
	m.erases++
	return nil
}

// TriggerWrite implements Controller.
func (m *Memory) TriggerWrite(addr int, data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pending > 0 {
		return ErrBusy
	}
	if addr < 0 || addr+len(data) > len(m.data) {
		return ErrBadAddr
	}
	for i, b := range data {
		m.data[addr+i] &= b
	}
	m.pending = m.Latency
	m.writes++
	return nil
}

// Counts reports the number of erase and write operations.
func (m *Memory) Counts() (erases, writes int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.erases, m.writes
}

// Image returns a copy of the content.
func (m *Memory) Image() []byte {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]byte(nil), m.data...)
}

// Sync persists the content to Path.
func (m *Memory) Sync() error {
	if m.Path == "" {
		return nil
	}
	return SaveImage(m.Path, m.Image())
}

// LoadImage reads a raw binary image and pads it to size with the erased
// value.
func LoadImage(path string, size int) ([]byte, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(content) > size {
		return nil, ErrImageSize
	}
	image := make([]byte, size)
	fill(image[copy(image, content):], Erased)
	return image, nil
}

// SaveImage writes a raw binary image.
func SaveImage(path string, image []byte) error {
	return ioutil.WriteFile(path, image, 0644)
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
