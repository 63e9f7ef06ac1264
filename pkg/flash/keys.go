package flash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// Key is an AES-128 signing key.
type Key [KeySize]byte

// Keys is the key ring stored in the bootloader region.
type Keys [NumKeys]Key

// Provisioned reports whether the key has been written.
func (k Key) Provisioned() bool {
	for _, b := range k {
		if b != Erased {
			return true
		}
	}
	return false
}

// ReadKeys reads the key ring.
func ReadKeys(f io.ReaderAt, m Map) (keys Keys, err error) {
	for i := range keys {
		if _, err = f.ReadAt(keys[i][:], int64(m.SignatureKeys+i*KeySize)); err != nil {
			return
		}
	}
	return
}

// ReadHWID reads the hardware id.
func ReadHWID(f io.ReaderAt, m Map) (protocol.HWID, error) {
	var b [2]byte
	if _, err := f.ReadAt(b[:], int64(m.HWID)); err != nil {
		return protocol.HWIDUnset, err
	}
	return protocol.HWID(binary.LittleEndian.Uint16(b[:])), nil
}

// Provision writes keys and hwid into the bootloader region of image.
func Provision(image []byte, m Map, keys Keys, hwid protocol.HWID) error {
	if len(image) < m.Size {
		return ErrBadAddr
	}
	for i, key := range keys {
		copy(image[m.SignatureKeys+i*KeySize:], key[:])
	}
	binary.LittleEndian.PutUint16(image[m.HWID:], uint16(hwid))
	return nil
}

// ParseKey parses a key written as 32 hex digits.
func ParseKey(s string) (k Key, err error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != KeySize {
		return k, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// String formats the key as hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
