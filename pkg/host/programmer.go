package host

import (
	"bytes"
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/lst.go/pkg/flash"
)

// Programming phases reported to Progress.
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseFinishing   = "finishing"
	PhaseComplete    = "complete"
)

// Progress reports programming progress.
type Progress struct {
	Phase string
	Pages int
	Total int
}

// ProgressCallback is called as programming proceeds.
type ProgressCallback func(Progress)

// Config holds the programmer configuration.
type Config struct {
	Map              flash.Map
	Retries          int
	ProgressCallback ProgressCallback
}

func defaultConfig() Config {
	return Config{
		Map:     flash.DefaultMap,
		Retries: 3,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithMap sets the flash map of the target.
func WithMap(m flash.Map) Option {
	return func(c *Config) {
		c.Map = m
	}
}

// WithRetries sets the number of retries of a command timing out.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// Programmer loads an application image through the bootloader.
type Programmer struct {
	client *Client
	config Config
}

// NewProgrammer creates a Programmer.
func NewProgrammer(client *Client, opts ...Option) *Programmer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Programmer{client: client, config: cfg}
}

// Program erases the application, writes every page of the application
// region of image that is not blank and finishes with the final page
// marker. image is a full flash image.
func (p *Programmer) Program(ctx context.Context, image []byte) error {
	m := p.config.Map
	if len(image) < m.AppEnd+1 {
		return fmt.Errorf("image too short: %d bytes", len(image))
	}
	first, last := m.AppPages()
	blank := bytes.Repeat([]byte{flash.Erased}, flash.WritePageSize)
	var pages []int
	for page := first; page <= last; page++ {
		addr := page * flash.WritePageSize
		if !bytes.Equal(image[addr:addr+flash.WritePageSize], blank) {
			pages = append(pages, page)
		}
	}

	p.report(PhaseErasing, 0, len(pages))
	if err := p.retry(ctx, p.client.Erase); err != nil {
		return fmt.Errorf("erase: %v", err)
	}
	for n, page := range pages {
		addr := page * flash.WritePageSize
		data := image[addr : addr+flash.WritePageSize]
		err := p.retry(ctx, func(ctx context.Context) error {
			return p.client.WritePage(ctx, byte(page), data)
		})
		if err != nil {
			return fmt.Errorf("write page %d: %v", page, err)
		}
		p.report(PhaseProgramming, n+1, len(pages))
	}
	p.report(PhaseFinishing, len(pages), len(pages))
	err := p.retry(ctx, func(ctx context.Context) error {
		return p.client.WritePage(ctx, flash.Pages-1, nil)
	})
	if err != nil {
		return fmt.Errorf("final page: %v", err)
	}
	p.report(PhaseComplete, len(pages), len(pages))
	glog.Infof("host: programmed %d pages", len(pages))
	return nil
}

func (p *Programmer) retry(ctx context.Context, fn func(context.Context) error) (err error) {
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if err = fn(ctx); err != ErrTimeout {
			return
		}
		glog.Warningf("host: timeout, retry %d/%d", attempt+1, p.config.Retries)
	}
	return
}

func (p *Programmer) report(phase string, pages, total int) {
	if cb := p.config.ProgressCallback; cb != nil {
		cb(Progress{Phase: phase, Pages: pages, Total: total})
	}
}
