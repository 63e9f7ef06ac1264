package node

import (
	"math"
	"sync"
	"time"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// ADC samples the analog channels.
type ADC interface {
	Sample(ch *[protocol.ADCChannels]int16)
}

// ADCFunc is the func form of ADC.
type ADCFunc func(ch *[protocol.ADCChannels]int16)

// Sample implements ADC.
func (f ADCFunc) Sample(ch *[protocol.ADCChannels]int16) {
	f(ch)
}

// SimADC produces slowly varying readings on every channel.
type SimADC struct {
	Start time.Time

	once sync.Once
}

// Sample implements ADC.
func (a *SimADC) Sample(ch *[protocol.ADCChannels]int16) {
	a.once.Do(func() {
		if a.Start.IsZero() {
			a.Start = time.Now()
		}
	})
	t := time.Since(a.Start).Seconds()
	for i := range ch {
		period := float64(10 * (i + 1))
		ch[i] = int16(1024 + 512*math.Sin(2*math.Pi*t/period))
	}
}

// Telemetry builds a snapshot of the node counters. Custom fields are left
// to the caller.
func (n *Node) Telemetry(uptime uint32, adc *[protocol.ADCChannels]int16) protocol.Telemetry {
	t := protocol.Telemetry{Uptime: uptime}
	if adc != nil {
		t.ADC = *adc
	}
	if p := n.UART[0]; p != nil {
		t.UART0RxCount = p.RxCount()
	}
	if p := n.UART[1]; p != nil {
		t.UART1RxCount = p.RxCount()
	}
	if n.Radio != nil {
		s := n.Radio.Stats()
		t.RxMode, t.TxMode = uint8(s.RxMode), uint8(s.TxMode)
		t.LastRSSI, t.LastLQI, t.LastFreqEst = s.Last.RSSI, s.Last.LQI, s.Last.FreqEst
		t.PacketsSent = s.PacketsSent
		t.CSCount = s.CSCount
		t.PacketsGood = s.PacketsGood
		t.PacketsRejectedChecksum = s.PacketsRejectedChecksum
		t.PacketsRejectedReserved = s.PacketsRejectedReserved
		t.PacketsRejectedOther = s.PacketsRejectedOther
	}
	return t
}
