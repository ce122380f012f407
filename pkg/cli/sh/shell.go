package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/cmdtable"
	"github.com/robotalks/mculink/pkg/driver"
	"github.com/robotalks/mculink/pkg/env/link"
	fx "github.com/robotalks/mculink/pkg/framework"
	"github.com/robotalks/mculink/pkg/ipc"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell    *ishell.Shell
	Link     *link.Config
	Driver   *driver.Config
	Registry *cmdtable.Registry
	Loop     *ConnLoop
}

// ConnLoop is a running loop bridged to a driver over the IPC link.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Link   *link.Link
	Loop   *fx.Loop
	Status *ipc.Port

	lock     sync.Mutex
	readings map[string]ipc.Reading
	doneCh   chan struct{}
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
		&CommandsCmd,
		&SendCmd,
		&StatusCmd,
		&DecodeCmd,
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
func New(linkConf *link.Config, driverConf *driver.Config, registry *cmdtable.Registry) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:    ishell.New(),
		Link:     linkConf,
		Driver:   driverConf,
		Registry: registry,
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
		if ShellFrom(c).Loop == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the IPC link to the driver and starts bridging.
func (s *Shell) Connect() error {
	if s.Interactive && strings.HasPrefix(s.Link.URL, "stdio:") {
		return fmt.Errorf("stdio link can't be shared with an interactive shell, use -ipc")
	}
	l, err := s.Link.Open(link.RoleConsumer)
	if err != nil {
		return err
	}
	group := ipc.NewGroup(s.Driver.PortCapacities())
	status, err := group.ConsumerEnd(s.Driver.StatusPort)
	if err != nil {
		l.Close()
		return err
	}
	connLoop := &ConnLoop{
		Link:     l,
		Loop:     fx.NewLoop(),
		Status:   status,
		readings: make(map[string]ipc.Reading),
		doneCh:   make(chan struct{}),
	}
	connLoop.Ctx, connLoop.Cancel = context.WithCancel(context.Background())
	connLoop.Loop.AddRunnable(ipc.NewBridge(l, group.DriverEnds()...))
	connLoop.Loop.AddRunnable(l.Runnables()...)
	connLoop.Loop.AddController(fx.ControlFunc(connLoop.collect))

	s.Disconnect()
	s.Loop = connLoop
	go func() {
		defer close(connLoop.doneCh)
		if err := connLoop.Loop.Run(connLoop.Ctx); err != nil && err != context.Canceled {
			glog.Errorf("link closed: %v", err)
		}
		l.Close()
	}()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Link.URL))
	return nil
}

// Disconnect disconnects from the driver.
func (s *Shell) Disconnect() {
	if s.Loop != nil {
		s.Loop.drain(time.Second)
		s.Loop.Cancel()
		<-s.Loop.doneCh
		s.Loop = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Send sends a command to the device through the driver.
func (s *Shell) Send(mnemonic string, val float64) error {
	if s.Loop == nil {
		return fmt.Errorf("not connected")
	}
	desc, ok := s.Registry.ByName(mnemonic)
	if !ok {
		return &cmdtable.UnknownCommandError{Key: mnemonic}
	}
	if !s.Loop.Status.Send(&ipc.Command{Command: desc.Mnemonic, Value: val}) {
		return fmt.Errorf("port %s: queue full", s.Loop.Status.Name)
	}
	return nil
}

// Readings returns a copy of the latest reading per mnemonic.
func (l *ConnLoop) Readings() map[string]ipc.Reading {
	l.lock.Lock()
	defer l.lock.Unlock()
	readings := make(map[string]ipc.Reading, len(l.readings))
	for name, r := range l.readings {
		readings[name] = r
	}
	return readings
}

// drain waits for queued commands to be picked up by the bridge.
func (l *ConnLoop) drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for l.Status.Out.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *ConnLoop) collect(fx.ControlContext) error {
	for {
		p, ok := l.Status.ReceiveFIFO()
		if !ok {
			return nil
		}
		u, ok := p.(*ipc.StatusUpdate)
		if !ok {
			continue
		}
		l.lock.Lock()
		for name, r := range u.Values {
			l.readings[name] = r
		}
		l.lock.Unlock()
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Link.URL)
		}
		if err := s.Connect(); err != nil {
			log.Fatalf("connect %q failed: %v", s.Link.URL, err)
		}
		defer s.Disconnect()
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

func (s *Shell) printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

type readingJSON struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

var (
	// ConnectCmd connects the driver link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Link.URL = c.Args[0]
			}
			if err := s.Connect(); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects the driver link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// CommandsCmd lists the registered commands.
	CommandsCmd = ishell.Cmd{
		Name:    "commands",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			descs := s.Registry.Descriptors()
			if s.OutputJSON {
				s.printJSON(c, descs)
				return
			}
			for _, desc := range descs {
				c.Printf("%3d %-12s %s\n", desc.Code, desc.Mnemonic, desc.Kind)
			}
		},
	}

	// SendCmd sends a command to the device.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "MNEMONIC VALUE",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("MNEMONIC VALUE expected"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(fmt.Errorf("invalid value %q: %v", c.Args[1], err))
				return
			}
			if err := ShellFrom(c).Send(c.Args[0], val); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// StatusCmd prints the latest readings received from the driver.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "[MNEMONIC...]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			readings := s.Loop.Readings()
			names := c.Args
			if len(names) == 0 {
				for name := range readings {
					names = append(names, name)
				}
				sort.Strings(names)
			}
			if s.OutputJSON {
				out := make(map[string]readingJSON, len(names))
				for _, name := range names {
					if r, ok := readings[name]; ok {
						out[name] = readingJSON{Time: r.At, Value: r.Value}
					}
				}
				s.printJSON(c, out)
				return
			}
			for _, name := range names {
				r, ok := readings[name]
				if !ok {
					c.Printf("%-12s -\n", name)
					continue
				}
				c.Printf("%-12s %v %s\n", name, r.Value, r.At.Format(time.RFC3339Nano))
			}
		}),
	}

	// DecodeCmd decodes a packed status word.
	DecodeCmd = ishell.Cmd{
		Name: "decode",
		Help: "WORD",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("WORD expected"))
				return
			}
			word, err := strconv.ParseUint(c.Args[0], 0, 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid status word %q: %v", c.Args[0], err))
				return
			}
			fields := cmdtable.DecodeStatusWord(uint32(word))
			if s.OutputJSON {
				out := make(map[string]string, len(fields))
				for name, state := range fields {
					out[name] = state.String()
				}
				s.printJSON(c, out)
				return
			}
			for _, name := range cmdtable.StatusFields {
				c.Printf("%-10s %s\n", name, fields[name])
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(link.NewConfig(), driver.NewConfig(), cmdtable.Default()).
		WithAutoConnect(needsLink(flag.Args())).
		Run(flag.Args()...)
}

func needsLink(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case CommandsCmd.Name, DecodeCmd.Name:
		return false
	}
	for _, alias := range CommandsCmd.Aliases {
		if args[0] == alias {
			return false
		}
	}
	return true
}
