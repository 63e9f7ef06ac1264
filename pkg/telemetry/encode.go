// Package telemetry publishes node telemetry snapshots on MQTT and decodes
// them for monitoring.
package telemetry

import (
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/lst.go/pkg/protocol"
)

// Snapshot is a telemetry record with the identity of its node.
type Snapshot struct {
	HWID      protocol.HWID
	Callsign  string
	Telemetry protocol.Telemetry
}

func number(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func str(v string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: v}}
}

// Struct converts the snapshot into a protobuf Struct.
func (s *Snapshot) Struct() *structpb.Struct {
	t := &s.Telemetry
	adc := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(t.ADC))}
	for _, v := range t.ADC {
		adc.Values = append(adc.Values, number(float64(v)))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"hwid":                      str(s.HWID.String()),
		"callsign":                  str(s.Callsign),
		"uptime":                    number(float64(t.Uptime)),
		"uart0_rx_count":            number(float64(t.UART0RxCount)),
		"uart1_rx_count":            number(float64(t.UART1RxCount)),
		"rx_mode":                   number(float64(t.RxMode)),
		"tx_mode":                   number(float64(t.TxMode)),
		"adc":                       {Kind: &structpb.Value_ListValue{ListValue: adc}},
		"last_rssi":                 number(float64(t.LastRSSI)),
		"last_lqi":                  number(float64(t.LastLQI)),
		"last_freqest":              number(float64(t.LastFreqEst)),
		"packets_sent":              number(float64(t.PacketsSent)),
		"cs_count":                  number(float64(t.CSCount)),
		"packets_good":              number(float64(t.PacketsGood)),
		"packets_rejected_checksum": number(float64(t.PacketsRejectedChecksum)),
		"packets_rejected_reserved": number(float64(t.PacketsRejectedReserved)),
		"packets_rejected_other":    number(float64(t.PacketsRejectedOther)),
		"custom0":                   number(float64(t.Custom0)),
		"custom1":                   number(float64(t.Custom1)),
	}}
}

// Encode serializes the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	return proto.Marshal(s.Struct())
}

// Decode parses a published snapshot.
func Decode(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// JSON renders a decoded snapshot.
func JSON(s *structpb.Struct) (string, error) {
	m := jsonpb.Marshaler{}
	return m.MarshalToString(s)
}
