// Package term configures the ground terminal.
package term

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robotalks/lst.go/pkg/env"
	"github.com/robotalks/lst.go/pkg/host"
	"github.com/robotalks/lst.go/pkg/link"
	"github.com/robotalks/lst.go/pkg/protocol"
)

// Config provides options of the ground terminal.
type Config struct {
	// Link is the URL of the serial link to the ground node.
	// e.g. serial:///dev/ttyUSB0?baud=115200, tcp://localhost:4000
	Link string
	// HWID of the target node in hex.
	HWID    string
	Timeout time.Duration
	Retries int
}

var defaultConfig = Config{
	HWID:    protocol.HWIDLocal.String(),
	Timeout: host.DefaultTimeout,
	Retries: 3,
}

func init() {
	if val := os.Getenv("LST_LINK"); val != "" {
		defaultConfig.Link = val
	}
	if val := os.Getenv("LST_HWID"); val != "" {
		defaultConfig.HWID = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Link, "link", defaultConfig.Link, "Link URL of the ground node")
	flag.StringVar(&defaultConfig.HWID, "hwid", defaultConfig.HWID, "Target hardware ID in hex")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Command timeout")
	flag.IntVar(&defaultConfig.Retries, "retries", defaultConfig.Retries, "Retries of a timed out page write")
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

// Conn is an open link with a client on it.
type Conn struct {
	Link   io.ReadWriteCloser
	Client *host.Client
}

// Connect opens the link and creates a client for the configured node.
func (c *Config) Connect(ctx context.Context) (*Conn, error) {
	if c.Link == "" {
		return nil, fmt.Errorf("link URL is required")
	}
	hwid, err := env.ParseHWID(c.HWID)
	if err != nil {
		return nil, fmt.Errorf("invalid hwid %q: %v", c.HWID, err)
	}
	rw, err := link.Open(ctx, c.Link)
	if err != nil {
		return nil, err
	}
	client := host.NewClient(rw, hwid)
	client.Timeout = c.Timeout
	return &Conn{Link: rw, Client: client}, nil
}

// ProgrammerOptions are the programmer options from config.
func (c *Config) ProgrammerOptions() []host.Option {
	return []host.Option{host.WithRetries(c.Retries)}
}
