package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchdog(t *testing.T) {
	t0 := time.Unix(1000, 0)
	w := Watchdog{RxTimeout: time.Second, TxTimeout: 500 * time.Millisecond}
	w.Reset(t0)

	testCases := []struct {
		after     time.Duration
		rxExpired bool
		txIdle    bool
	}{
		{0, false, false},
		{500 * time.Millisecond, false, false},
		{501 * time.Millisecond, false, true},
		{time.Second, false, true},
		{time.Second + 1, true, true},
	}
	for _, tc := range testCases {
		now := t0.Add(tc.after)
		require.Equalf(t, tc.rxExpired, w.RxExpired(now), "rx after %v", tc.after)
		require.Equalf(t, tc.txIdle, w.TxIdle(now), "tx after %v", tc.after)
	}

	w.Received(t0.Add(time.Second))
	w.Sent(t0.Add(time.Second))
	require.False(t, w.RxExpired(t0.Add(2*time.Second)))
	require.False(t, w.TxIdle(t0.Add(1500*time.Millisecond)))
}

func TestWatchdogDisabled(t *testing.T) {
	var w Watchdog
	w.Reset(time.Unix(0, 0))
	require.False(t, w.RxExpired(time.Unix(1e6, 0)))
	require.False(t, w.TxIdle(time.Unix(1e6, 0)))
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
		status string
	}{
		{"serial default", func(c *Config) {}, true, "USB_ST"},
		{"udp", func(c *Config) { c.Transport, c.PeerAddr = TransportUDP, "10.0.0.2:8888" }, true, "RJ45_ST"},
		{"explicit status", func(c *Config) { c.LinkStatus = "LINK" }, true, "LINK"},
		{"udp without peer", func(c *Config) { c.Transport, c.PeerAddr = TransportUDP, "" }, false, ""},
		{"unknown transport", func(c *Config) { c.Transport = "can" }, false, ""},
		{"same channels", func(c *Config) { c.ChannelB = c.ChannelA }, false, ""},
		{"alignment disabled", func(c *Config) { c.BlockSize, c.ChannelB = 0, c.ChannelA }, true, "USB_ST"},
		{"same ports", func(c *Config) { c.BlockPort = c.StatusPort }, false, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := defaultConfig
			c.Transport, c.LinkStatus, c.PeerAddr = TransportSerial, "", ""
			tc.modify(&c)
			err := c.Validate()
			if !tc.valid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.status, c.LinkStatus)
		})
	}
}
