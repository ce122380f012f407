// Package link opens the packet link between a driver and its consumers
// according to a URL.
//
//	stdio:                       length-prefixed packets on stdin/stdout
//	mqtt://host:port/prefix/     through an MQTT broker (also tcp://, ssl://)
//	ws://host:port/path          driver listens, consumers dial
package link

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/robotalks/mculink/pkg/env"
	fx "github.com/robotalks/mculink/pkg/framework"
	"github.com/robotalks/mculink/pkg/ipc"
	"github.com/robotalks/mculink/pkg/ipc/mqtt"
	"github.com/robotalks/mculink/pkg/ipc/stream"
	"github.com/robotalks/mculink/pkg/ipc/websocket"
)

// Role is the side of the link.
type Role int

// Roles.
const (
	RoleDriver Role = iota
	RoleConsumer
)

// Config provides options to open a link.
type Config struct {
	// URL of the link.
	URL string
	// Instance names the driver on a shared broker.
	Instance string
}

var defaultConfig = Config{
	URL: "stdio:",
}

func init() {
	if val := os.Getenv("MCULINK_IPC_URL"); val != "" {
		defaultConfig.URL = val
	}
	if val := os.Getenv("MCULINK_INSTANCE"); val != "" {
		defaultConfig.Instance = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "ipc", defaultConfig.URL, "IPC link URL (stdio:, mqtt://host:port/prefix/, ws://host:port/path).")
	flag.StringVar(&defaultConfig.Instance, "instance", defaultConfig.Instance, "Driver instance name on a shared broker, default is derived from machine id.")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Link is an opened packet link.
type Link struct {
	ipc.PacketReadWriter

	runners []fx.Runnable
	closers []io.Closer
}

// Runnables returns what must be run for the link to work.
func (l *Link) Runnables() []fx.Runnable {
	return l.runners
}

// Close implements io.Closer.
func (l *Link) Close() error {
	var errs fx.AggregatedError
	for i := len(l.closers) - 1; i >= 0; i-- {
		errs.Add(l.closers[i].Close())
	}
	return errs.Aggregate()
}

// Open opens the link for the role.
func (c *Config) Open(role Role) (*Link, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid IPC URL: %v", err)
	}
	switch u.Scheme {
	case "stdio":
		rw := stream.NewStdio()
		return &Link{PacketReadWriter: rw, closers: []io.Closer{rw}}, nil
	case "mqtt", "tcp", "ssl":
		return c.openMQTT(u, role)
	case "ws":
		return openWebsocket(u, role)
	default:
		return nil, fmt.Errorf("unknown IPC URL scheme: %q", u.Scheme)
	}
}

func (c *Config) instance(u *url.URL) string {
	if val := u.Query().Get("instance"); val != "" {
		return val
	}
	if c.Instance != "" {
		return c.Instance
	}
	return env.InstanceID()
}

func (c *Config) openMQTT(u *url.URL, role Role) (*Link, error) {
	opts, prefix, err := mqtt.ClientOptionsFromURL(u.String())
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		suffix := "-drv"
		if role == RoleConsumer {
			suffix = fmt.Sprintf("-con-%d", os.Getpid())
		}
		opts.SetClientID(c.instance(u) + suffix)
	}
	broker := mqtt.NewBroker(opts, prefix)
	if err := broker.Connect(); err != nil {
		return nil, fmt.Errorf("connect broker: %v", err)
	}
	var rw *mqtt.ReadWriter
	if role == RoleDriver {
		rw = mqtt.ForDriver(broker, c.instance(u))
	} else {
		rw = mqtt.ForConsumer(broker, c.instance(u))
	}
	return &Link{
		PacketReadWriter: rw,
		runners:          []fx.Runnable{rw},
		closers:          []io.Closer{broker, rw},
	}, nil
}

func openWebsocket(u *url.URL, role Role) (*Link, error) {
	if role == RoleDriver {
		srv := websocket.NewServer(u.Host, u.Path)
		if err := srv.Listen(); err != nil {
			return nil, err
		}
		return &Link{PacketReadWriter: srv, runners: []fx.Runnable{srv}, closers: []io.Closer{srv}}, nil
	}
	rw, err := websocket.Dial(u.String(), "http://"+u.Host+"/")
	if err != nil {
		return nil, err
	}
	return &Link{PacketReadWriter: rw, closers: []io.Closer{rw}}, nil
}
