// Package flash models the node's program flash: the region map, the
// flash controller and the protected page updater used by the bootloader.
package flash

import "fmt"

// Flash geometry.
const (
	ErasePageSize = 1024
	WritePageSize = 128
	KeySize       = 16
	NumKeys       = 3
	SignatureSize = 16
	Erased        = 0xff
	// Pages is the number of write pages an 8-bit page index addresses.
	Pages = 256
)

// Map is the flash region map. All values are byte addresses; ends are
// inclusive.
type Map struct {
	BootloaderEnd int
	SignatureKeys int
	Reserved      int
	HWID          int
	AppStart      int
	AppEnd        int
	AppSignature  int
	AppCRC        int
	StorageStart  int
	StorageEnd    int
	UpdaterStart  int
	Size          int
}

// DefaultMap is the map of a 32KB part.
var DefaultMap = Map{
	BootloaderEnd: 0x03ff,
	SignatureKeys: 0x03cc,
	Reserved:      0x03fc,
	HWID:          0x03fe,
	AppStart:      0x0400,
	AppEnd:        0x6bff,
	AppSignature:  0x6bf0,
	AppCRC:        0x6bfe,
	StorageStart:  0x6c00,
	StorageEnd:    0x6fff,
	UpdaterStart:  0x7000,
	Size:          0x8000,
}

func init() {
	if err := DefaultMap.Validate(); err != nil {
		panic(err)
	}
}

// Validate checks the ordering and alignment constraints.
func (m Map) Validate() error {
	switch {
	case m.AppStart%ErasePageSize != 0:
		return fmt.Errorf("app start 0x%04x not aligned to erase page", m.AppStart)
	case m.StorageStart%ErasePageSize != 0:
		return fmt.Errorf("storage start 0x%04x not aligned to erase page", m.StorageStart)
	case m.AppStart <= m.BootloaderEnd:
		return fmt.Errorf("app start 0x%04x overlaps bootloader", m.AppStart)
	case m.AppEnd <= m.AppStart:
		return fmt.Errorf("empty app region")
	case m.AppEnd >= m.StorageStart:
		return fmt.Errorf("app end 0x%04x overlaps storage", m.AppEnd)
	case m.StorageEnd >= m.UpdaterStart || m.StorageEnd < m.StorageStart:
		return fmt.Errorf("storage end 0x%04x out of order", m.StorageEnd)
	case m.AppEnd >= m.Size || m.UpdaterStart >= m.Size:
		return fmt.Errorf("regions exceed flash size 0x%04x", m.Size)
	case (m.AppSignature-m.AppStart)%SignatureSize != 0:
		return fmt.Errorf("app signature 0x%04x not block aligned", m.AppSignature)
	case m.AppSignature+SignatureSize > m.AppEnd+1:
		return fmt.Errorf("app signature 0x%04x outside app region", m.AppSignature)
	case m.SignatureKeys+NumKeys*KeySize > m.BootloaderEnd+1:
		return fmt.Errorf("signature keys 0x%04x outside bootloader", m.SignatureKeys)
	case m.HWID+2 > m.BootloaderEnd+1:
		return fmt.Errorf("hwid 0x%04x outside bootloader", m.HWID)
	}
	return nil
}

// AppPages lists the write page range [first, last] of the application.
func (m Map) AppPages() (first, last int) {
	return m.AppStart / WritePageSize, (m.AppEnd+1)/WritePageSize - 1
}
