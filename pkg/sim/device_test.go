package sim

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/lst.go/pkg/env/device"
	"github.com/robotalks/lst.go/pkg/flash"
	"github.com/robotalks/lst.go/pkg/host"
	"github.com/robotalks/lst.go/pkg/link"
	"github.com/robotalks/lst.go/pkg/signature"
)

const testKey = "0f0e0d0c0b0a09080706050403020100"

type stages struct {
	lock sync.Mutex
	seen []Stage
}

func (s *stages) add(st Stage) {
	s.lock.Lock()
	s.seen = append(s.seen, st)
	s.lock.Unlock()
}

func (s *stages) get() []Stage {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Stage(nil), s.seen...)
}

func signedImage(t *testing.T) []byte {
	image := bytes.Repeat([]byte{flash.Erased}, flash.DefaultMap.Size)
	copy(image[flash.DefaultMap.AppStart:], "application")
	key, err := flash.ParseKey(testKey)
	require.NoError(t, err)
	require.NoError(t, signature.New(flash.DefaultMap).Sign(image, key))
	return image
}

func retry(t *testing.T, fn func() error) {
	var err error
	for i := 0; i < 40; i++ {
		if err = fn(); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err)
}

func TestDeviceBootCycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c := device.NewConfig()
	c.HWID = "2001"
	c.Key = testKey
	c.MQTTBrokerURL = ""
	e, err := c.NewEnv(ctx)
	require.NoError(t, err)
	ground, uart0 := link.Pipe()
	e.Links[0] = link.NewRelay("uart0", uart0)

	var seen stages
	d := New(e)
	d.OnStage = seen.add
	done := make(chan error, 1)
	go e.Links[0].Run(ctx)
	go func() { done <- d.Run(ctx) }()

	client := host.NewClient(ground, e.HWID)
	go client.Run(ctx)

	retry(t, func() error { return client.Ping(ctx) })
	require.NoError(t, host.NewProgrammer(client).Program(ctx, signedImage(t)))

	var callsign string
	retry(t, func() error {
		if err := client.SetCallsign(ctx, "K7LST"); err != nil {
			return err
		}
		callsign, err = client.GetCallsign(ctx)
		return err
	})
	require.Equal(t, "K7LST", callsign)

	require.NoError(t, client.Reboot(ctx))
	retry(t, func() error { return client.Ping(ctx) })
	require.Equal(t, 1, d.Resets())
	require.Equal(t, []Stage{StageBootloader, StageApplication, StageBootloader}, seen.get())

	cancel()
	require.Equal(t, context.Canceled, <-done)
}
