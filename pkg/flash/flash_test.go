package flash

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/protocol"
)

func TestDefaultMapValid(t *testing.T) {
	require.NoError(t, DefaultMap.Validate())
	first, last := DefaultMap.AppPages()
	require.Equal(t, 8, first)
	require.Equal(t, 0xd7, last)
}

func TestMapValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(m *Map)
	}{
		{"unaligned app", func(m *Map) { m.AppStart = 0x0480 }},
		{"unaligned storage", func(m *Map) { m.StorageStart = 0x6c80 }},
		{"app inside bootloader", func(m *Map) { m.BootloaderEnd = 0x07ff }},
		{"empty app", func(m *Map) { m.AppEnd = m.AppStart }},
		{"app overlaps storage", func(m *Map) { m.AppEnd = 0x6c00 }},
		{"beyond flash", func(m *Map) { m.Size = 0x6000 }},
		{"signature misaligned", func(m *Map) { m.AppSignature = 0x6bf8 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := DefaultMap
			tc.modify(&m)
			require.Error(t, m.Validate())
		})
	}
}

func TestWritePageProtection(t *testing.T) {
	page := bytes.Repeat([]byte{0x5a}, WritePageSize)
	testCases := []struct {
		name string
		page int
		data []byte
		err  error
	}{
		{"bootloader", 3, page, ErrProtected},
		{"first app page", 8, page, nil},
		{"last app page", 0xd7, page, nil},
		{"storage", 0xd8, page, ErrProtected},
		{"updater", 0xff, page, ErrProtected},
		{"beyond flash", 256, page, ErrBadAddr},
		{"short page", 8, page[:100], ErrPageSize},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mem := NewMemory(DefaultMap.Size)
			u := NewUpdater(DefaultMap, mem, nil)
			require.Equal(t, tc.err, u.WritePage(tc.page, tc.data))
			_, writes := mem.Counts()
			if tc.err == nil {
				require.Equal(t, 1, writes)
				got := make([]byte, WritePageSize)
				_, err := mem.ReadAt(got, int64(tc.page*WritePageSize))
				require.NoError(t, err)
				require.Equal(t, page, got)
			} else {
				require.Zero(t, writes)
			}
		})
	}
}

func TestEraseApp(t *testing.T) {
	image := bytes.Repeat([]byte{0}, DefaultMap.Size)
	mem := NewMemoryFromImage(image)
	mem.Latency = 3
	u := NewUpdater(DefaultMap, mem, nil)
	require.NoError(t, u.EraseApp())

	erases, _ := mem.Counts()
	require.Equal(t, (DefaultMap.AppEnd+1-DefaultMap.AppStart)/ErasePageSize, erases)
	content := mem.Image()
	require.Equal(t, image[:DefaultMap.AppStart], content[:DefaultMap.AppStart])
	require.Equal(t, bytes.Repeat([]byte{Erased}, DefaultMap.AppEnd+1-DefaultMap.AppStart),
		content[DefaultMap.AppStart:DefaultMap.AppEnd+1])
	require.Equal(t, image[DefaultMap.StorageStart:], content[DefaultMap.StorageStart:])
}

func TestMemoryProgramsClearBitsOnly(t *testing.T) {
	mem := NewMemory(DefaultMap.Size)
	require.NoError(t, mem.TriggerWrite(0x400, []byte{0x0f}))
	require.NoError(t, mem.TriggerWrite(0x400, []byte{0xf1}))
	b := make([]byte, 1)
	_, err := mem.ReadAt(b, 0x400)
	require.NoError(t, err)
	require.EqualValues(t, 0x01, b[0])

	mem.Latency = 1
	require.NoError(t, mem.TriggerErase(0x400))
	require.Equal(t, ErrBusy, mem.TriggerWrite(0x400, []byte{0}))
	require.True(t, mem.Busy())
	require.False(t, mem.Busy())
}

func TestProvisionAndRead(t *testing.T) {
	image := bytes.Repeat([]byte{Erased}, DefaultMap.Size)
	var keys Keys
	keys[1] = Key{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	for _, i := range []int{0, 2} {
		copy(keys[i][:], bytes.Repeat([]byte{Erased}, KeySize))
	}
	require.NoError(t, Provision(image, DefaultMap, keys, 0x1234))
	require.Equal(t, []byte{0x34, 0x12}, image[0x3fe:0x400])

	mem := NewMemoryFromImage(image)
	got, err := ReadKeys(mem, DefaultMap)
	require.NoError(t, err)
	require.Equal(t, keys, got)
	require.False(t, got[0].Provisioned())
	require.True(t, got[1].Provisioned())

	hwid, err := ReadHWID(mem, DefaultMap)
	require.NoError(t, err)
	require.Equal(t, protocol.HWID(0x1234), hwid)

	hwid, err = ReadHWID(NewMemory(DefaultMap.Size), DefaultMap)
	require.NoError(t, err)
	require.Equal(t, protocol.HWIDUnset, hwid)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	require.EqualValues(t, 0x0f, k[15])
	require.Equal(t, "000102030405060708090a0b0c0d0e0f", k.String())
	_, err = ParseKey("0001")
	require.Error(t, err)
	_, err = ParseKey("zz")
	require.Error(t, err)
}

func TestImageFiles(t *testing.T) {
	dir, err := ioutil.TempDir("", "flash")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "app.bin")

	require.NoError(t, ioutil.WriteFile(path, []byte{1, 2, 3}, 0644))
	image, err := LoadImage(path, 16)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, image[:3])
	require.Equal(t, bytes.Repeat([]byte{Erased}, 13), image[3:])
	_, err = LoadImage(path, 2)
	require.Equal(t, ErrImageSize, err)

	mem, err := OpenMemory(filepath.Join(dir, "node.bin"), 16)
	require.NoError(t, err)
	require.NoError(t, mem.TriggerWrite(0, []byte{0}))
	require.NoError(t, mem.Sync())
	reopened, err := OpenMemory(filepath.Join(dir, "node.bin"), 16)
	require.NoError(t, err)
	require.Equal(t, mem.Image(), reopened.Image())
}
