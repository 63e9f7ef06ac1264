package uart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feed(d *Decoder, in ...byte) (frames int) {
	for _, b := range in {
		if d.Parse(b) {
			frames++
		}
	}
	return
}

func TestDecoder(t *testing.T) {
	testCases := []struct {
		name   string
		bufs   int
		in     []byte
		frames [][]byte
		state  State
	}{
		{
			name:   "single frame",
			bufs:   1,
			in:     []byte{0x22, 0x69, 0x05, 'a', 'b', 'c', 'd', 'e'},
			frames: [][]byte{[]byte("abcde")},
			state:  WaitStart0,
		},
		{
			name:   "repeated first start byte",
			bufs:   1,
			in:     []byte{0x22, 0x22, 0x69, 0x03, 1, 2, 3},
			frames: [][]byte{{1, 2, 3}},
			state:  WaitStart0,
		},
		{
			name:   "junk after first start byte stays in WaitStart1",
			bufs:   1,
			in:     []byte{0x22, 0x00, 0x13, 0x69, 0x01, 9},
			frames: [][]byte{{9}},
			state:  WaitStart0,
		},
		{
			name:  "junk before start is skipped",
			bufs:  1,
			in:    []byte{0x69, 0x00, 0x01},
			state: WaitStart0,
		},
		{
			name:  "zero length returns to WaitStart1",
			bufs:  1,
			in:    []byte{0x22, 0x69, 0x00},
			state: WaitStart1,
		},
		{
			name:   "oversized length returns to WaitStart1",
			bufs:   1,
			in:     []byte{0x22, 0x69, 252, 0x69, 0x02, 7, 8},
			frames: [][]byte{{7, 8}},
			state:  WaitStart0,
		},
		{
			name:   "full pool drops frame",
			bufs:   1,
			in:     []byte{0x22, 0x69, 0x01, 1, 0x22, 0x69, 0x01, 2},
			frames: [][]byte{{1}},
			state:  WaitStart0,
		},
		{
			name:   "second slot used while first is ready",
			bufs:   2,
			in:     []byte{0x22, 0x69, 0x01, 1, 0x22, 0x69, 0x01, 2},
			frames: [][]byte{{1}, {2}},
			state:  WaitStart0,
		},
		{
			name:  "partial frame",
			bufs:  1,
			in:    []byte{0x22, 0x69, 0x04, 1, 2},
			state: ReceiveData,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(tc.bufs)
			feed(d, tc.in...)
			require.Equal(t, tc.state, d.State())
			require.Equal(t, len(tc.frames), d.Pending())
			buf := make([]byte, MaxFrameSize)
			for _, expected := range tc.frames {
				n := d.Poll(buf)
				require.Equal(t, expected, buf[:n])
			}
			require.Zero(t, d.Poll(buf))
			require.EqualValues(t, len(tc.frames), d.RxCount())
		})
	}
}

func TestDecoderPollsInSlotOrder(t *testing.T) {
	d := NewDecoder(2)
	buf := make([]byte, MaxFrameSize)
	require.Equal(t, 2, feed(d, 0x22, 0x69, 0x01, 'A', 0x22, 0x69, 0x01, 'B'))

	n := d.Poll(buf)
	require.Equal(t, []byte("A"), buf[:n])

	// C lands in the slot A just freed and is delivered before B.
	require.Equal(t, 1, feed(d, 0x22, 0x69, 0x01, 'C'))
	n = d.Poll(buf)
	require.Equal(t, []byte("C"), buf[:n])
	n = d.Poll(buf)
	require.Equal(t, []byte("B"), buf[:n])
	require.EqualValues(t, 3, d.RxCount())
}

func TestDecoderMaxFrame(t *testing.T) {
	d := NewDecoder(1)
	in := []byte{0x22, 0x69, MaxFrameSize}
	for i := 0; i < MaxFrameSize; i++ {
		in = append(in, byte(i))
	}
	require.Equal(t, 1, feed(d, in...))
	buf := make([]byte, MaxFrameSize)
	require.Equal(t, MaxFrameSize, d.Poll(buf))
	require.EqualValues(t, MaxFrameSize-1, buf[MaxFrameSize-1])
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(1)
	feed(d, 0x22, 0x69, 0x01, 1, 0x22, 0x69)
	d.Reset()
	require.Equal(t, WaitStart0, d.State())
	require.Zero(t, d.Pending())
}

func TestAppendFrame(t *testing.T) {
	frame, err := AppendFrame(nil, []byte("abc"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x22, 0x69, 0x03, 'a', 'b', 'c'}, frame)

	_, err = AppendFrame(nil, nil)
	require.Equal(t, ErrFrameSize, err)
	_, err = AppendFrame(nil, make([]byte, MaxFrameSize+1))
	require.Equal(t, ErrFrameSize, err)

	d := NewDecoder(1)
	require.Equal(t, 1, feed(d, frame...))
}
