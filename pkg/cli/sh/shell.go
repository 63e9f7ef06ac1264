// Package sh provides the interactive ground terminal. Command packages
// register their commands with AddCmds during init.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	lstenv "github.com/robotalks/lst.go/pkg/env"
	env "github.com/robotalks/lst.go/pkg/env/term"
	"github.com/robotalks/lst.go/pkg/host"
	"github.com/robotalks/lst.go/pkg/protocol"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *ConnLoop
}

// ConnLoop is a connected client running in the background.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Conn   *env.Conn
}

// Client is the connected client.
func (l *ConnLoop) Client() *host.Client {
	return l.Conn.Client
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&TargetCmd,
		&SendCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// CommandFunc runs a command with the connected client. A nil result is
// printed as OK.
type CommandFunc func(ctx context.Context, client *host.Client) (interface{}, error)

// DoCommand runs a command and prints the result.
func DoCommand(c *ishell.Context, fn CommandFunc) (err error) {
	s := ShellFrom(c)
	if s.Conn == nil {
		err = fmt.Errorf("not connected")
		c.Err(err)
		return
	}
	res, err := fn(s.Conn.Ctx, s.Conn.Client())
	if err != nil {
		c.Err(err)
		return err
	}
	return s.Print(c, res)
}

// Print prints a command result.
func (s *Shell) Print(c *ishell.Context, res interface{}) error {
	if s.OutputJSON {
		if res == nil {
			res = map[string]interface{}{}
		}
		out, err := json.Marshal(res)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	if res == nil {
		c.Println("OK")
		return nil
	}
	if str, ok := res.(fmt.Stringer); ok {
		c.Println(str.String())
		return nil
	}
	c.Printf("%+v\n", res)
	return nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the configured link.
func (s *Shell) Connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.Config.Connect(ctx)
	if err != nil {
		cancel()
		return err
	}
	conn.Client.OnMessage = s.printMessage
	if s.Conn != nil {
		s.Conn.Cancel()
	}
	s.Conn = &ConnLoop{Ctx: ctx, Cancel: cancel, Conn: conn}
	go func() {
		if err := conn.Client.Run(ctx); err != nil && err != context.Canceled {
			glog.Warningf("link %s: %v", s.Config.Link, err)
		}
	}()
	s.updatePrompt()
	return nil
}

// Disconnect closes the current link.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

func (s *Shell) updatePrompt() {
	if s.Conn == nil {
		s.Shell.SetPrompt(unconnectedPrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s@%s > ", s.Conn.Client().HWID, s.Config.Link))
}

func (s *Shell) printMessage(msg *protocol.Message) {
	if msg.Command == protocol.OpASCII {
		s.Shell.Printf("[%s] %s\n", msg.HWID, strings.TrimRight(string(msg.Data), "\r\n\x00"))
		return
	}
	glog.V(2).Infof("unsolicited %s", msg)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Link != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Link)
		}
		if err := s.Connect(); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Link, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[LINK [HWID]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Link = c.Args[0]
			}
			if len(c.Args) > 1 {
				s.Config.HWID = c.Args[1]
			}
			if err := s.Connect(); err != nil {
				c.Err(err)
				return
			}
		},
	}

	// DisconnectCmd disconnects current link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// TargetCmd selects the node commands are addressed to.
	TargetCmd = ishell.Cmd{
		Name:    "target",
		Aliases: []string{"t"},
		Help:    "HWID",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HWID required"))
				return
			}
			hwid, err := lstenv.ParseHWID(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid HWID: %v", err))
				return
			}
			s := ShellFrom(c)
			s.Config.HWID = c.Args[0]
			s.Conn.Client().HWID = hwid
			s.updatePrompt()
		}),
	}

	// SendCmd sends a raw command.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "OPCODE [HEXDATA]",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("OPCODE required"))
				return
			}
			op, ok := protocol.ParseOpcode(c.Args[0])
			if !ok {
				c.Err(fmt.Errorf("Unknown OPCODE %q", c.Args[0]))
				return
			}
			var data []byte
			if len(c.Args) > 1 {
				var err error
				if data, err = hex.DecodeString(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid HEXDATA: %v", err))
					return
				}
			}
			DoCommand(c, func(ctx context.Context, client *host.Client) (interface{}, error) {
				reply, err := client.Request(ctx, op, data)
				if err != nil {
					return nil, err
				}
				return reply, nil
			})
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
