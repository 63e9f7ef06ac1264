package boot

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/lst.go/pkg/cli/sh"
	"github.com/robotalks/lst.go/pkg/flash"
	"github.com/robotalks/lst.go/pkg/host"
	"github.com/robotalks/lst.go/pkg/signature"
)

// SignImage signs the application of the image file at path with a hex
// key and writes the result to out, or back to path when out is empty.
func SignImage(path, key, out string) error {
	k, err := flash.ParseKey(key)
	if err != nil {
		return fmt.Errorf("invalid KEY: %v", err)
	}
	image, err := flash.LoadImage(path, flash.DefaultMap.Size)
	if err != nil {
		return err
	}
	if err := signature.New(flash.DefaultMap).Sign(image, k); err != nil {
		return err
	}
	if out == "" {
		out = path
	}
	return flash.SaveImage(out, image)
}

var (
	// PingCmd pings the bootloader.
	PingCmd = ishell.Cmd{
		Name:    "boot.ping",
		Aliases: []string{"ping"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, client.Ping(ctx)
			})
		}),
	}

	// EraseCmd erases the application.
	EraseCmd = ishell.Cmd{
		Name:    "boot.erase",
		Aliases: []string{"erase"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, client.Erase(ctx)
			})
		}),
	}

	// BootloadCmd programs a signed image.
	BootloadCmd = ishell.Cmd{
		Name:    "boot.load",
		Aliases: []string{"bootload"},
		Help:    "IMAGE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("IMAGE required"))
				return
			}
			image, err := flash.LoadImage(c.Args[0], flash.DefaultMap.Size)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			opts := s.Config.ProgrammerOptions()
			if s.Interactive {
				bar := c.ProgressBar()
				bar.Start()
				defer bar.Stop()
				opts = append(opts, host.WithProgressCallback(func(p host.Progress) {
					if p.Total > 0 {
						bar.Progress(p.Pages * 100 / p.Total)
					}
					bar.Suffix(" " + p.Phase)
				}))
			}
			sh.DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				return nil, host.NewProgrammer(client, opts...).Program(ctx, image)
			})
		}),
	}

	// SignCmd signs an image file.
	SignCmd = ishell.Cmd{
		Name:    "boot.sign",
		Aliases: []string{"sign"},
		Help:    "IMAGE KEY [OUTPUT]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("IMAGE and KEY required"))
				return
			}
			var out string
			if len(c.Args) > 2 {
				out = c.Args[2]
			}
			if err := SignImage(c.Args[0], c.Args[1], out); err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).Print(c, nil)
		},
	}
)

func init() {
	sh.AddCmds(
		&PingCmd,
		&EraseCmd,
		&BootloadCmd,
		&SignCmd,
	)
}
