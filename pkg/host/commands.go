package host

import (
	"context"
	"time"

	"github.com/robotalks/lst.go/pkg/protocol"
)

func expect(reply *protocol.Message, err error, op protocol.Opcode) (*protocol.Message, error) {
	if err != nil {
		return nil, err
	}
	if reply.Command != op {
		return nil, ErrUnexpectedReply
	}
	return reply, nil
}

func (c *Client) bootloaderAck(ctx context.Context, op protocol.Opcode, data []byte, code byte) error {
	reply, err := c.Request(ctx, op, data)
	if reply, err = expect(reply, err, protocol.OpBootloaderAck); err != nil {
		return err
	}
	var ack protocol.BootloaderAck
	if err := protocol.Unpack(reply.Data, &ack); err != nil {
		return err
	}
	if ack.Code != code {
		return ErrUnexpectedReply
	}
	return nil
}

// Ping checks the bootloader is listening and extends its keep-alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.bootloaderAck(ctx, protocol.OpBootloaderPing, nil, protocol.BootloaderAckPong)
}

// Erase erases the application.
func (c *Client) Erase(ctx context.Context) error {
	return c.bootloaderAck(ctx, protocol.OpBootloaderErase, nil, protocol.BootloaderAckErased)
}

// WritePage writes one flash page, data is empty for the final page.
func (c *Client) WritePage(ctx context.Context, page byte, data []byte) error {
	payload, _ := protocol.AppendPayload(nil, &protocol.WritePage{Page: page, Data: data})
	return c.bootloaderAck(ctx, protocol.OpBootloaderWritePage, payload, page)
}

func (c *Client) ack(ctx context.Context, op protocol.Opcode, data []byte) error {
	reply, err := c.Request(ctx, op, data)
	_, err = expect(reply, err, protocol.OpAck)
	return err
}

// Reboot reboots the node.
func (c *Client) Reboot(ctx context.Context) error {
	return c.ack(ctx, protocol.OpReboot, nil)
}

// Postpone moves the automatic reboot to seconds from now.
func (c *Client) Postpone(ctx context.Context, seconds uint32) error {
	data, _ := protocol.AppendPayload(nil, &protocol.Postpone{Seconds: seconds})
	return c.ack(ctx, protocol.OpReboot, data)
}

// GetTime reads the node clock.
func (c *Client) GetTime(ctx context.Context) (time.Time, error) {
	reply, err := c.Request(ctx, protocol.OpGetTime, nil)
	if reply, err = expect(reply, err, protocol.OpSetTime); err != nil {
		return time.Time{}, err
	}
	var ts protocol.Timespec
	if err := protocol.Unpack(reply.Data, &ts); err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(ts.Seconds), int64(ts.Nanoseconds)), nil
}

// SetTime sets the node clock.
func (c *Client) SetTime(ctx context.Context, t time.Time) error {
	data, err := protocol.AppendPayload(nil, &protocol.Timespec{
		Seconds:     uint32(t.Unix()),
		Nanoseconds: uint32(t.Nanosecond()),
	})
	if err != nil {
		return err
	}
	return c.ack(ctx, protocol.OpSetTime, data)
}

// Telemetry reads the telemetry snapshot.
func (c *Client) Telemetry(ctx context.Context) (*protocol.Telemetry, error) {
	reply, err := c.Request(ctx, protocol.OpGetTelem, nil)
	if reply, err = expect(reply, err, protocol.OpTelem); err != nil {
		return nil, err
	}
	var t protocol.Telemetry
	if err := protocol.Unpack(reply.Data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetCallsign reads the callsign.
func (c *Client) GetCallsign(ctx context.Context) (string, error) {
	reply, err := c.Request(ctx, protocol.OpGetCallsign, nil)
	if reply, err = expect(reply, err, protocol.OpCallsign); err != nil {
		return "", err
	}
	var cs protocol.Callsign
	if err := protocol.Unpack(reply.Data, &cs); err != nil {
		return "", err
	}
	return cs.String(), nil
}

// SetCallsign sets the callsign, at most CallsignSize bytes are kept.
func (c *Client) SetCallsign(ctx context.Context, callsign string) error {
	if len(callsign) > protocol.CallsignSize {
		callsign = callsign[:protocol.CallsignSize]
	}
	return c.ack(ctx, protocol.OpSetCallsign, []byte(callsign))
}

// Ranging sends a ranging request and returns the round trip time.
func (c *Client) Ranging(ctx context.Context) (*protocol.RangingAck, time.Duration, error) {
	start := time.Now()
	reply, err := c.Request(ctx, protocol.OpRanging, nil)
	if reply, err = expect(reply, err, protocol.OpRangingAck); err != nil {
		return nil, 0, err
	}
	rtt := time.Since(start)
	var ack protocol.RangingAck
	if err := protocol.Unpack(reply.Data, &ack); err != nil {
		return nil, 0, err
	}
	return &ack, rtt, nil
}
