// Package device sets up the environment of a simulated node: its flash,
// serial links and radio medium.
package device

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/env"
	"github.com/robotalks/lst.go/pkg/flash"
	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/link"
	"github.com/robotalks/lst.go/pkg/mqtt"
	"github.com/robotalks/lst.go/pkg/node"
	"github.com/robotalks/lst.go/pkg/protocol"
	"github.com/robotalks/lst.go/pkg/radio"
	"github.com/robotalks/lst.go/pkg/radio/mqttair"
	"github.com/robotalks/lst.go/pkg/signature"
	"github.com/robotalks/lst.go/pkg/telemetry"
	"github.com/robotalks/lst.go/pkg/uart"
)

// Config provides options of a simulated node.
type Config struct {
	// HWID in hex, derived from the machine id when empty.
	HWID string
	// MQTTBrokerURL is the radio medium, no radio when empty.
	// e.g. mqtt://host:port/topic-prefix, loop://prefix
	MQTTBrokerURL string
	Channel       string
	// UART0 and UART1 are link URLs, unconnected when empty.
	UART0 string
	UART1 string
	// FlashPath persists the flash image, in memory only when empty.
	FlashPath string
	// Key is provisioned as the first signing key of a blank flash.
	Key      string
	Revision string
	// Forward enables forwarding between transports in the application.
	Forward bool
	// BootloaderForward enables forwarding while in the bootloader.
	BootloaderForward bool
	TelemetryInterval time.Duration
}

var defaultConfig = Config{
	MQTTBrokerURL:     mqtt.DefaultURL,
	Channel:           mqttair.DefaultChannel,
	Revision:          "sim",
	Forward:           true,
	TelemetryInterval: telemetry.DefaultInterval,
}

func init() {
	if val := os.Getenv("LST_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("LST_UART0"); val != "" {
		defaultConfig.UART0 = val
	}
	if val := os.Getenv("LST_UART1"); val != "" {
		defaultConfig.UART1 = val
	}
	if val := os.Getenv("LST_HWID"); val != "" {
		defaultConfig.HWID = val
	}
	if val := os.Getenv("LST_FLASH"); val != "" {
		defaultConfig.FlashPath = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.HWID, "hwid", defaultConfig.HWID, "Hardware ID in hex")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL of the radio medium, empty for no radio")
	flag.StringVar(&defaultConfig.Channel, "channel", defaultConfig.Channel, "Radio channel")
	flag.StringVar(&defaultConfig.UART0, "uart0", defaultConfig.UART0, "Link URL of UART0")
	flag.StringVar(&defaultConfig.UART1, "uart1", defaultConfig.UART1, "Link URL of UART1")
	flag.StringVar(&defaultConfig.FlashPath, "flash", defaultConfig.FlashPath, "Flash image file")
	flag.StringVar(&defaultConfig.Key, "key", defaultConfig.Key, "Signing key provisioned into a blank flash, 32 hex digits")
	flag.StringVar(&defaultConfig.Revision, "revision", defaultConfig.Revision, "Firmware revision reported at boot")
	flag.BoolVar(&defaultConfig.Forward, "forward", defaultConfig.Forward, "Forward traffic not addressed to the node")
	flag.BoolVar(&defaultConfig.BootloaderForward, "bl-forward", defaultConfig.BootloaderForward, "Forward traffic not addressed to the node in the bootloader")
	flag.DurationVar(&defaultConfig.TelemetryInterval, "telemetry-interval", defaultConfig.TelemetryInterval, "Telemetry publishing interval, 0 to disable")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is the hardware of a simulated node, it persists across reboots.
type Env struct {
	Config   *Config
	HWID     protocol.HWID
	Map      flash.Map
	Flash    *flash.Memory
	Verifier *signature.Verifier
	Queue    *mqtt.Queue
	Air      *mqttair.Driver
	Links    [2]*link.Relay
}

// NewEnv creates Env from config. Links with a listen scheme block until
// a peer connects.
func (c *Config) NewEnv(ctx context.Context) (*Env, error) {
	e := &Env{Config: c, Map: flash.DefaultMap}
	e.Verifier = signature.New(e.Map)
	if err := e.openFlash(); err != nil {
		return nil, err
	}
	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL, "lst-"+e.HWID.String())
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %v", err)
		}
		e.Queue = q
		e.Air = mqttair.New(q, e.HWID.String())
		e.Air.Channel = c.Channel
	}
	for i, u := range []string{c.UART0, c.UART1} {
		if u == "" {
			continue
		}
		glog.Infof("uart%d: opening %s", i, u)
		rw, err := link.Open(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("open uart%d error: %v", i, err)
		}
		e.Links[i] = link.NewRelay(fmt.Sprintf("uart%d", i), rw)
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context) *Env {
	e, err := c.NewEnv(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

func (e *Env) openFlash() (err error) {
	if e.Config.FlashPath != "" {
		e.Flash, err = flash.OpenMemory(e.Config.FlashPath, e.Map.Size)
		if err != nil {
			return fmt.Errorf("open flash error: %v", err)
		}
	} else {
		e.Flash = flash.NewMemory(e.Map.Size)
	}
	stored, err := flash.ReadHWID(e.Flash, e.Map)
	if err != nil {
		return err
	}
	if stored != protocol.HWIDUnset && e.Config.HWID == "" {
		e.HWID = stored
		return nil
	}
	if e.Config.HWID != "" {
		if e.HWID, err = env.ParseHWID(e.Config.HWID); err != nil {
			return fmt.Errorf("invalid hwid %q: %v", e.Config.HWID, err)
		}
	} else {
		e.HWID = env.MachineHWID()
	}
	if stored == e.HWID {
		return nil
	}
	return e.provision()
}

// provision writes the hwid and, for a blank key ring, the configured key.
func (e *Env) provision() error {
	image := e.Flash.Image()
	keys, err := flash.ReadKeys(e.Flash, e.Map)
	if err != nil {
		return err
	}
	if e.Config.Key != "" && !keys[0].Provisioned() {
		if keys[0], err = flash.ParseKey(e.Config.Key); err != nil {
			return fmt.Errorf("invalid key: %v", err)
		}
	}
	if err := flash.Provision(image, e.Map, keys, e.HWID); err != nil {
		return err
	}
	glog.Infof("flash: provisioned hwid %s", e.HWID)
	e.Flash = flash.NewMemoryFromImage(image)
	e.Flash.Path = e.Config.FlashPath
	return e.Flash.Sync()
}

// Runnables are the long running parts of the hardware.
func (e *Env) Runnables() []fx.Runnable {
	var runnables []fx.Runnable
	if e.Queue != nil {
		runnables = append(runnables, fx.NamedRun("mqtt", e.Queue))
	}
	for _, r := range e.Links {
		if r != nil {
			runnables = append(runnables, fx.NamedRun(r.Name, r))
		}
	}
	return runnables
}

// NewNode powers up the transports of the application, as after a reset.
func (e *Env) NewNode() (*node.Node, error) {
	n, err := e.newNode()
	if err != nil {
		return nil, err
	}
	return n.ForwardAll(e.Config.Forward), nil
}

// NewBootloaderNode powers up the transports of the bootloader.
func (e *Env) NewBootloaderNode() (*node.Node, error) {
	n, err := e.newNode()
	if err != nil {
		return nil, err
	}
	return n.ForwardAll(e.Config.BootloaderForward), nil
}

func (e *Env) newNode() (*node.Node, error) {
	n := node.New(e.HWID)
	buffers := [...]int{node.UART0Buffers, node.UART1Buffers}
	for i, r := range e.Links {
		if r != nil {
			n.AttachUART(i, uart.NewPort(r.Name, r.Attach(), buffers[i]))
		}
	}
	if e.Air != nil {
		n.AttachRadio(radio.New(e.Air))
		if err := n.Radio.Listen(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NewPublisher creates the telemetry publisher, nil without MQTT or when
// disabled.
func (e *Env) NewPublisher(src telemetry.Source) *telemetry.Publisher {
	if e.Queue == nil || e.Config.TelemetryInterval <= 0 {
		return nil
	}
	p := telemetry.NewPublisher(e.Queue, src)
	p.Interval = e.Config.TelemetryInterval
	return p
}
