package device

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/flash"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/telemetry"
)

const testKey = "000102030405060708090a0b0c0d0e0f"

func TestNewEnvProvisionsBlankFlash(t *testing.T) {
	dir, err := ioutil.TempDir("", "lst-env")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	c := NewConfig()
	c.HWID = "2001"
	c.MQTTBrokerURL = "loop://lst/"
	c.FlashPath = filepath.Join(dir, "flash.bin")
	c.Key = testKey
	e, err := c.NewEnv(context.Background())
	require.NoError(t, err)
	require.Equal(t, protocol.HWID(0x2001), e.HWID)

	image, err := flash.LoadImage(c.FlashPath, flash.DefaultMap.Size)
	require.NoError(t, err)
	hwid, err := flash.ReadHWID(flash.NewMemoryFromImage(image), flash.DefaultMap)
	require.NoError(t, err)
	require.Equal(t, e.HWID, hwid)
	keys, err := flash.ReadKeys(e.Flash, e.Map)
	require.NoError(t, err)
	require.Equal(t, testKey, keys[0].String())
	require.False(t, keys[1].Provisioned())

	// the stored hwid wins when none is configured.
	c2 := NewConfig()
	c2.MQTTBrokerURL = ""
	c2.FlashPath = c.FlashPath
	e2, err := c2.NewEnv(context.Background())
	require.NoError(t, err)
	require.Equal(t, e.HWID, e2.HWID)
	require.Nil(t, e2.Queue)
	require.Nil(t, e2.NewPublisher(nil))
}

func TestNewEnvInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
	}{
		{"hwid", Config{HWID: "node"}},
		{"key", Config{HWID: "2001", Key: "abc"}},
		{"uart", Config{HWID: "2001", UART0: "carrier-pigeon://x"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.config
			_, err := c.NewEnv(context.Background())
			require.Error(t, err)
		})
	}
}

func TestNewNode(t *testing.T) {
	c := NewConfig()
	c.HWID = "2002"
	c.MQTTBrokerURL = "loop://"
	c.TelemetryInterval = telemetry.DefaultInterval
	e, err := c.NewEnv(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Runnables(), 1)

	n, err := e.NewNode()
	require.NoError(t, err)
	require.Equal(t, protocol.HWID(0x2002), n.HWID)
	require.NotNil(t, n.Radio)
	require.Nil(t, n.UART[0])
	require.Equal(t, [3]bool{true, true, true}, n.Forward)

	bl, err := e.NewBootloaderNode()
	require.NoError(t, err)
	require.Equal(t, [3]bool{}, bl.Forward)
	require.NotNil(t, bl.Radio)

	c.BootloaderForward = true
	bl, err = e.NewBootloaderNode()
	require.NoError(t, err)
	require.Equal(t, [3]bool{true, true, true}, bl.Forward)
	require.NotNil(t, e.NewPublisher(func() telemetry.Snapshot { return telemetry.Snapshot{} }))
}
