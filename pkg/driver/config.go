package driver

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"
)

// Transport kinds.
const (
	TransportSerial = "serial"
	TransportUDP    = "udp"
)

// Config provides driver options.
type Config struct {
	Transport string

	// serial
	VendorID          string
	ProductID         string
	BaudRate          int
	SerialReadTimeout time.Duration

	// udp
	LocalAddr      string
	PeerAddr       string
	UDPReadTimeout time.Duration

	DiscoveryInterval time.Duration
	IdleWait          time.Duration
	RxTimeout         time.Duration
	TxTimeout         time.Duration
	KeepaliveCommand  string
	KeepaliveValue    float64
	FlushInterval     time.Duration

	// LinkStatus is the mnemonic of the published link status,
	// default depends on the transport.
	LinkStatus    string
	LinkUpValue   float64
	LinkDownValue float64

	ChannelA  string
	ChannelB  string
	BlockSize int

	StatusPort     string
	StatusCapacity int
	BlockPort      string
	BlockCapacity  int
}

var defaultConfig = Config{
	Transport:         TransportSerial,
	VendorID:          "2E8A",
	BaudRate:          921600,
	SerialReadTimeout: time.Second,
	LocalAddr:         ":8888",
	UDPReadTimeout:    100 * time.Millisecond,
	DiscoveryInterval: 3 * time.Second,
	IdleWait:          100 * time.Millisecond,
	RxTimeout:         3 * time.Second,
	TxTimeout:         time.Second,
	KeepaliveCommand:  "PING",
	KeepaliveValue:    8888,
	FlushInterval:     500 * time.Millisecond,
	LinkUpValue:       1,
	LinkDownValue:     2,
	ChannelA:          "ADC1",
	ChannelB:          "ADC2",
	BlockSize:         50,
	StatusPort:        "status",
	StatusCapacity:    1024,
	BlockPort:         "adc",
	BlockCapacity:     16,
}

func envString(name string, val *string) {
	if s := os.Getenv(name); s != "" {
		*val = s
	}
}

func envInt(name string, val *int) {
	if s := os.Getenv(name); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			glog.Warningf("invalid %s=%q ignored: %v", name, s, err)
			return
		}
		*val = n
	}
}

func envDuration(name string, val *time.Duration) {
	if s := os.Getenv(name); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			glog.Warningf("invalid %s=%q ignored: %v", name, s, err)
			return
		}
		*val = d
	}
}

func init() {
	c := &defaultConfig
	envString("MCULINK_TRANSPORT", &c.Transport)
	envString("MCULINK_VID", &c.VendorID)
	envString("MCULINK_PID", &c.ProductID)
	envInt("MCULINK_BAUD", &c.BaudRate)
	envString("MCULINK_LOCAL_ADDR", &c.LocalAddr)
	envString("MCULINK_PEER_ADDR", &c.PeerAddr)
	envDuration("MCULINK_RX_TIMEOUT", &c.RxTimeout)
	envDuration("MCULINK_TX_TIMEOUT", &c.TxTimeout)
	envDuration("MCULINK_DISCOVERY_INTERVAL", &c.DiscoveryInterval)
	envString("MCULINK_LINK_STATUS", &c.LinkStatus)
	envInt("MCULINK_BLOCK_SIZE", &c.BlockSize)
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&c.Transport, "transport", c.Transport, "Device transport: serial or udp.")
	flag.StringVar(&c.VendorID, "vid", c.VendorID, "USB vendor id (hex) of the serial device.")
	flag.StringVar(&c.ProductID, "pid", c.ProductID, "USB product id (hex) of the serial device, any if empty.")
	flag.IntVar(&c.BaudRate, "baud", c.BaudRate, "Serial baud rate.")
	flag.DurationVar(&c.SerialReadTimeout, "serial-read-timeout", c.SerialReadTimeout, "Serial read timeout.")
	flag.StringVar(&c.LocalAddr, "local", c.LocalAddr, "Local UDP address to bind.")
	flag.StringVar(&c.PeerAddr, "peer", c.PeerAddr, "UDP address of the device.")
	flag.DurationVar(&c.UDPReadTimeout, "udp-read-timeout", c.UDPReadTimeout, "UDP receive timeout.")
	flag.DurationVar(&c.DiscoveryInterval, "discovery-interval", c.DiscoveryInterval, "Delay between discovery attempts.")
	flag.DurationVar(&c.RxTimeout, "rx-timeout", c.RxTimeout, "Link is faulted after this long without a valid frame, 0 disables.")
	flag.DurationVar(&c.TxTimeout, "tx-timeout", c.TxTimeout, "Keepalive is sent after this long without sending, 0 disables.")
	flag.StringVar(&c.KeepaliveCommand, "keepalive", c.KeepaliveCommand, "Keepalive command mnemonic.")
	flag.Float64Var(&c.KeepaliveValue, "keepalive-value", c.KeepaliveValue, "Keepalive command value.")
	flag.DurationVar(&c.FlushInterval, "flush-interval", c.FlushInterval, "Interval of link-up status updates.")
	flag.StringVar(&c.LinkStatus, "link-status", c.LinkStatus, "Mnemonic of the link status update, default USB_ST or RJ45_ST.")
	flag.StringVar(&c.ChannelA, "channel-a", c.ChannelA, "Mnemonic of aligned channel A.")
	flag.StringVar(&c.ChannelB, "channel-b", c.ChannelB, "Mnemonic of aligned channel B.")
	flag.IntVar(&c.BlockSize, "block-size", c.BlockSize, "Samples per aligned block, 0 disables alignment.")
	flag.IntVar(&c.StatusCapacity, "status-capacity", c.StatusCapacity, "Capacity of the status queues, 0 is unbounded.")
	flag.IntVar(&c.BlockCapacity, "block-capacity", c.BlockCapacity, "Capacity of the block queues, 0 is unbounded.")
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

// Validate checks the config and fills derived defaults.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSerial:
		if c.VendorID == "" {
			return fmt.Errorf("vendor id required for serial transport")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.BaudRate)
		}
		if c.LinkStatus == "" {
			c.LinkStatus = "USB_ST"
		}
	case TransportUDP:
		if c.PeerAddr == "" {
			return fmt.Errorf("peer address required for udp transport")
		}
		if c.LinkStatus == "" {
			c.LinkStatus = "RJ45_ST"
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.DiscoveryInterval <= 0 {
		return fmt.Errorf("invalid discovery interval %v", c.DiscoveryInterval)
	}
	if c.BlockSize < 0 {
		return fmt.Errorf("invalid block size %d", c.BlockSize)
	}
	if c.BlockSize > 0 && (c.ChannelA == "" || c.ChannelB == "" || c.ChannelA == c.ChannelB) {
		return fmt.Errorf("two distinct channels required for alignment")
	}
	if c.StatusPort == "" || c.BlockPort == "" || c.StatusPort == c.BlockPort {
		return fmt.Errorf("two distinct port names required")
	}
	return nil
}

// NewTransport creates the configured Transport.
func (c *Config) NewTransport() Transport {
	if c.Transport == TransportUDP {
		return NewUDPTransport(c.LocalAddr, c.PeerAddr, c.UDPReadTimeout)
	}
	return NewSerialTransport(c.VendorID, c.ProductID, c.BaudRate, c.SerialReadTimeout)
}

// PortCapacities returns the port names and capacities for ipc.NewGroup.
func (c *Config) PortCapacities() map[string]int {
	return map[string]int{
		c.StatusPort: c.StatusCapacity,
		c.BlockPort:  c.BlockCapacity,
	}
}
