package boot

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/flash"
	"github.com/robotalks/lst.go/pkg/signature"
)

const testKey = "00112233445566778899aabbccddeeff"

func TestSignImage(t *testing.T) {
	dir, err := ioutil.TempDir("", "lst-sign")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "app.bin")
	out := filepath.Join(dir, "signed.bin")
	image := make([]byte, flash.DefaultMap.AppStart+16)
	copy(image[flash.DefaultMap.AppStart:], "application")
	require.NoError(t, flash.SaveImage(in, image))

	testCases := []struct {
		name string
		key  string
		out  string
		ok   bool
	}{
		{"separate output", testKey, out, true},
		{"in place", testKey, "", true},
		{"bad key", "0011", out, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := SignImage(in, tc.key, tc.out)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			dst := tc.out
			if dst == "" {
				dst = in
			}
			signed, err := flash.LoadImage(dst, flash.DefaultMap.Size)
			require.NoError(t, err)
			key, _ := flash.ParseKey(testKey)
			require.True(t, signature.New(flash.DefaultMap).Valid(flash.NewMemoryFromImage(signed), flash.Keys{key}))
		})
	}
}

func TestSignImageMissing(t *testing.T) {
	require.Error(t, SignImage(filepath.Join(os.TempDir(), "no-such-image.bin"), testKey, ""))
}
