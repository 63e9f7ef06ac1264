package term

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/link"
	"github.com/robotalks/lst.go/pkg/protocol"
)

func TestConnectErrors(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{"no link", Config{HWID: "2001"}},
		{"bad hwid", Config{Link: "tcp://127.0.0.1:1", HWID: "x"}},
		{"bad scheme", Config{Link: "udp://127.0.0.1:1", HWID: "2001"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.config
			_, err := c.Connect(context.Background())
			require.Error(t, err)
		})
	}
}

func TestConnect(t *testing.T) {
	l, err := link.Listen("tcp+listen://127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	c := NewConfig()
	c.Link = "tcp://" + l.Addr().String()
	c.HWID = "0x2001"
	c.Timeout = 50 * time.Millisecond
	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Link.Close()
	require.Equal(t, protocol.HWID(0x2001), conn.Client.HWID)
	require.Equal(t, c.Timeout, conn.Client.Timeout)
	require.Len(t, c.ProgrammerOptions(), 1)
}
