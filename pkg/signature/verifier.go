// Package signature authenticates the application image with an AES
// CBC-MAC against the keys provisioned in the bootloader.
package signature

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/flash"
)

// Verifier checks the stored application signature.
type Verifier struct {
	Map       flash.Map
	NewCipher func(key []byte) (cipher.Block, error)
}

// New creates a Verifier using AES.
func New(m flash.Map) *Verifier {
	return &Verifier{Map: m, NewCipher: aes.NewCipher}
}

// Valid reports whether the stored signature matches the MAC under any
// of the keys. Every key is evaluated regardless of earlier matches.
func (v *Verifier) Valid(f io.ReaderAt, keys flash.Keys) bool {
	var stored [flash.SignatureSize]byte
	if _, err := f.ReadAt(stored[:], int64(v.Map.AppSignature)); err != nil {
		glog.Errorf("signature: read: %v", err)
		return false
	}
	var match byte
	for i := range keys {
		mac, err := v.mac(f, keys[i][:])
		if err != nil {
			glog.Errorf("signature: key %d: %v", i, err)
			continue
		}
		var acc byte
		for n := range mac {
			acc |= mac[n] ^ stored[n]
		}
		match |= byte(subtle.ConstantTimeByteEq(acc, 0))
	}
	return match != 0
}

// MAC computes the CBC-MAC of the signed range under key.
func (v *Verifier) MAC(f io.ReaderAt, key flash.Key) ([flash.SignatureSize]byte, error) {
	return v.mac(f, key[:])
}

func (v *Verifier) mac(f io.ReaderAt, key []byte) (mac [flash.SignatureSize]byte, err error) {
	newCipher := v.NewCipher
	if newCipher == nil {
		newCipher = aes.NewCipher
	}
	block, err := newCipher(key)
	if err != nil {
		return mac, err
	}
	var buf [flash.SignatureSize]byte
	for addr := v.Map.AppStart; addr < v.Map.AppSignature; addr += len(buf) {
		if _, err = f.ReadAt(buf[:], int64(addr)); err != nil {
			return mac, err
		}
		for i := range mac {
			mac[i] ^= buf[i]
		}
		block.Encrypt(mac[:], mac[:])
	}
	return mac, nil
}

// Sign computes the MAC of image under key and stores it at the signature
// address.
func (v *Verifier) Sign(image []byte, key flash.Key) error {
	if len(image) < v.Map.AppSignature+flash.SignatureSize {
		return flash.ErrBadAddr
	}
	mac, err := v.MAC(bytes.NewReader(image), key)
	if err != nil {
		return err
	}
	copy(image[v.Map.AppSignature:], mac[:])
	return nil
}
