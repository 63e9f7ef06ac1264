package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLFSR16GoldenVectors(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		expect uint16
	}{
		{name: "check string", in: []byte("123456789"), expect: 0xAEE7},
		{name: "empty keeps seed", in: nil, expect: 0xFFFF},
		{name: "single zero", in: []byte{0x00}, expect: 0xFD02},
		{
			name:   "get telem packet",
			in:     []byte{0x09, 0x40, 0x01, 0x00, 0x01, 0x17, 0x34, 0x12},
			expect: 0x03A6,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, LFSR16(tc.in))
		})
	}
}

func TestChecksumDefaultsToLFSR(t *testing.T) {
	data := []byte("openlst")
	require.Equal(t, LFSR16(data), Checksum(data))
}
