package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/lst.go/pkg/cli/sh"
	"github.com/robotalks/lst.go/pkg/host"
)

// RangingResult is printed by the ranging command.
type RangingResult struct {
	Type    byte          `json:"type"`
	Version byte          `json:"version"`
	RTT     time.Duration `json:"rtt"`
}

// String implements fmt.Stringer.
func (r *RangingResult) String() string {
	return fmt.Sprintf("ranging ack type=%d version=%d rtt=%s", r.Type, r.Version, r.RTT)
}

// ParseTime parses a unix timestamp with optional fraction, or "now".
func ParseTime(s string) (time.Time, error) {
	if s == "" || s == "now" {
		return time.Now(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec := int64(v)
	return time.Unix(sec, int64((v-float64(sec))*1e9)), nil
}

var (
	// RebootCmd reboots the node.
	RebootCmd = ishell.Cmd{
		Name:    "reboot",
		Aliases: []string{"rb"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, client.Reboot(ctx)
			})
		}),
	}

	// PostponeCmd postpones the automatic reboot.
	PostponeCmd = ishell.Cmd{
		Name:    "postpone",
		Aliases: []string{"pp"},
		Help:    "SECONDS",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("SECONDS required"))
				return
			}
			seconds, err := strconv.ParseUint(c.Args[0], 10, 32)
			if err != nil {
				c.Err(fmt.Errorf("Invalid SECONDS: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, client.Postpone(ctx, uint32(seconds))
			})
		}),
	}

	// TimeCmd reads the node clock.
	TimeCmd = ishell.Cmd{
		Name: "time",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				t, err := client.GetTime(ctx)
				if err != nil {
					return nil, err
				}
				return t.UTC().Format(time.RFC3339Nano), nil
			})
		}),
	}

	// SetTimeCmd sets the node clock.
	SetTimeCmd = ishell.Cmd{
		Name: "settime",
		Help: "[UNIX_SECONDS|now]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var arg string
			if len(c.Args) > 0 {
				arg = c.Args[0]
			}
			t, err := ParseTime(arg)
			if err != nil {
				c.Err(fmt.Errorf("Invalid time: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, client.SetTime(ctx, t)
			})
		}),
	}

	// TelemCmd reads telemetry.
	TelemCmd = ishell.Cmd{
		Name:    "telem",
		Aliases: []string{"tm"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return client.Telemetry(ctx)
			})
		}),
	}

	// CallsignCmd reads or sets the callsign.
	CallsignCmd = ishell.Cmd{
		Name:    "callsign",
		Aliases: []string{"cs"},
		Help:    "[CALLSIGN]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				if len(c.Args) > 0 {
					return nil, client.SetCallsign(ctx, c.Args[0])
				}
				return client.GetCallsign(ctx)
			})
		}),
	}

	// RangingCmd measures the round trip of a ranging request.
	RangingCmd = ishell.Cmd{
		Name:    "ranging",
		Aliases: []string{"rg"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				ack, rtt, err := client.Ranging(ctx)
				if err != nil {
					return nil, err
				}
				return &RangingResult{Type: ack.Type, Version: ack.Version, RTT: rtt}, nil
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&RebootCmd,
		&PostponeCmd,
		&TimeCmd,
		&SetTimeCmd,
		&TelemCmd,
		&CallsignCmd,
		&RangingCmd,
	)
}
