package host

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/app"
	"github.com/robotalks/lst.go/pkg/bootloader"
	"github.com/robotalks/lst.go/pkg/flash"
	"github.com/robotalks/lst.go/pkg/link"
	"github.com/robotalks/lst.go/pkg/node"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/schedule"
	"github.com/robotalks/lst.go/pkg/signature"
	"github.com/robotalks/lst.go/pkg/uart"
)

const testHWID protocol.HWID = 0x2001

var testKey = flash.Key{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6}

type sink struct{ bytes.Buffer }

func (s *sink) Read([]byte) (int, error) { return 0, io.EOF }

func reply(seq uint16, op protocol.Opcode) *protocol.Message {
	return &protocol.Message{Header: protocol.Header{HWID: testHWID, Seq: seq, System: protocol.SystemRadio, Command: op}}
}

func TestClientMatchesBySeq(t *testing.T) {
	c := NewClient(&sink{}, testHWID)
	c.seq = 0xfffe
	first := c.Do(protocol.OpGetTelem, nil)
	second := c.Do(protocol.OpGetTime, nil)
	third := c.Do(protocol.OpGetCallsign, nil)
	require.EqualValues(t, 0xffff, first.RequestSeq())
	require.EqualValues(t, 1, second.RequestSeq(), "seqnum 0 is skipped")

	var others []*protocol.Message
	c.OnMessage = func(msg *protocol.Message) { others = append(others, msg) }
	c.HandleMessage(reply(0, protocol.OpASCII))
	c.HandleMessage(reply(77, protocol.OpAck))
	require.Len(t, others, 2)

	c.HandleMessage(reply(second.RequestSeq(), protocol.OpNack))
	r := <-first.ResultChan()
	require.Equal(t, ErrNoReply, r.Err)
	r = <-second.ResultChan()
	require.Equal(t, &CommandError{Code: protocol.OpNack}, r.Err)

	c.HandleMessage(reply(third.RequestSeq(), protocol.OpCallsign))
	r = <-third.ResultChan()
	require.NoError(t, r.Err)
	require.Equal(t, protocol.OpCallsign, r.Reply.Command)
	require.Nil(t, c.cmdsHead)
}

func TestClientTimeout(t *testing.T) {
	out := &sink{}
	c := NewClient(out, testHWID)
	c.Timeout = 10 * time.Millisecond
	_, err := c.Request(context.Background(), protocol.OpGetTelem, nil)
	require.Equal(t, ErrTimeout, err)
	require.Nil(t, c.cmdsHead)
	require.Nil(t, c.cmdsTail)

	d := uart.NewDecoder(1)
	buf := make([]byte, uart.MaxFrameSize)
	for _, b := range out.Bytes() {
		if d.Parse(b) {
			msg, err := protocol.ParseMessage(buf[:d.Poll(buf)])
			require.NoError(t, err)
			require.Equal(t, testHWID, msg.HWID)
			require.Equal(t, protocol.OpGetTelem, msg.Command)
		}
	}
}

func provisioned(t *testing.T) []byte {
	image := bytes.Repeat([]byte{flash.Erased}, flash.DefaultMap.Size)
	var keys flash.Keys
	for i := range keys {
		copy(keys[i][:], bytes.Repeat([]byte{flash.Erased}, flash.KeySize))
	}
	keys[0] = testKey
	require.NoError(t, flash.Provision(image, flash.DefaultMap, keys, testHWID))
	return image
}

func connect(t *testing.T, ctx context.Context) (*Client, *node.Node) {
	ground, device := link.Pipe()
	n := node.New(testHWID)
	n.AttachUART(0, uart.NewPort("uart0", device, node.UART0Buffers))
	c := NewClient(ground, testHWID)
	go c.Run(ctx)
	return c, n
}

func TestProgramBootloader(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, n := connect(t, ctx)
	mem := flash.NewMemoryFromImage(provisioned(t))
	b, err := bootloader.New(n, flash.NewUpdater(flash.DefaultMap, mem, n.Guard), signature.New(flash.DefaultMap))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.NoError(t, c.Ping(ctx))

	image := bytes.Repeat([]byte{flash.Erased}, flash.DefaultMap.Size)
	copy(image[flash.DefaultMap.AppStart:], "first page")
	copy(image[0x2000:], "somewhere in the middle")
	require.NoError(t, signature.New(flash.DefaultMap).Sign(image, testKey))

	var progress []Progress
	p := NewProgrammer(c, WithProgressCallback(func(p Progress) { progress = append(progress, p) }))
	require.NoError(t, p.Program(ctx, image))
	require.Equal(t, Progress{Phase: PhaseComplete, Pages: 3, Total: 3}, progress[len(progress)-1])

	require.Equal(t, bootloader.ErrBootApp, <-done)
	got := mem.Image()
	app := flash.DefaultMap
	require.Equal(t, image[app.AppStart:app.AppEnd+1], got[app.AppStart:app.AppEnd+1])
}

func TestBootloaderRejectsProtectedPage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, n := connect(t, ctx)
	mem := flash.NewMemoryFromImage(provisioned(t))
	b, err := bootloader.New(n, flash.NewUpdater(flash.DefaultMap, mem, n.Guard), signature.New(flash.DefaultMap))
	require.NoError(t, err)
	go b.Run(ctx)

	err = c.WritePage(ctx, 3, make([]byte, flash.WritePageSize))
	require.Equal(t, &CommandError{Code: protocol.OpBootloaderNack}, err)
}

type nopWatchdog struct{}

func (nopWatchdog) Clear()  {}
func (nopWatchdog) Reboot() {}

func TestApplicationCommands(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, n := connect(t, ctx)
	a := app.New(n, schedule.New(n.Guard), nopWatchdog{})
	go a.Run(ctx)

	_, err := c.GetTime(ctx)
	require.Equal(t, &CommandError{Code: protocol.OpNack}, err)
	now := time.Unix(1700000000, 0)
	require.NoError(t, c.SetTime(ctx, now))
	got, err := c.GetTime(ctx)
	require.NoError(t, err)
	require.WithinDuration(t, now, got, time.Second)

	require.NoError(t, c.SetCallsign(ctx, "W1AW"))
	callsign, err := c.GetCallsign(ctx)
	require.NoError(t, err)
	require.Equal(t, "W1AW", callsign)

	telem, err := c.Telemetry(ctx)
	require.NoError(t, err)
	require.Zero(t, telem.PacketsSent)

	require.NoError(t, c.Postpone(ctx, 60))
	require.Equal(t, &CommandError{Code: protocol.OpNack}, c.Postpone(ctx, schedule.AutoRebootMax+1))

	// ranging needs a radio
	_, _, err = c.Ranging(ctx)
	require.Equal(t, &CommandError{Code: protocol.OpNack}, err)
}
