package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mculink/pkg/cmdtable"
	"github.com/robotalks/mculink/pkg/frame"
	"github.com/robotalks/mculink/pkg/ipc"
)

type fakeConn struct {
	lock    sync.Mutex
	inbox   [][]byte
	written [][]byte
	readErr error
	closed  bool
}

func (c *fakeConn) ReadFrames() ([][]byte, error) {
	c.lock.Lock()
	if c.readErr != nil {
		c.lock.Unlock()
		return nil, c.readErr
	}
	frames := c.inbox
	c.inbox = nil
	c.lock.Unlock()
	if len(frames) == 0 {
		// read timeout
		time.Sleep(100 * time.Microsecond)
	}
	return frames, nil
}

func (c *fakeConn) WriteFrame(raw []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.written = append(c.written, raw)
	return nil
}

func (c *fakeConn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) inject(frames ...[]byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.inbox = append(c.inbox, frames...)
}

func (c *fakeConn) takeWritten() [][]byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	w := c.written
	c.written = nil
	return w
}

type fakeTransport struct {
	available bool
	discovers int
	conn      *fakeConn
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Discover(context.Context) (Conn, error) {
	t.discovers++
	if !t.available {
		return nil, ErrDeviceNotFound
	}
	t.conn = &fakeConn{}
	return t.conn, nil
}

type driverTestEnv struct {
	t         *testing.T
	ctx       context.Context
	clock     time.Time
	transport *fakeTransport
	consumer  struct{ status, blocks *ipc.Port }
	driver    *Driver
	codec     *frame.Codec
	states    []State
}

func newDriverTestEnv(t *testing.T, blockSize int) *driverTestEnv {
	conf := *NewConfig()
	conf.Transport = TransportUDP
	conf.PeerAddr = "127.0.0.1:8888"
	conf.BlockSize = blockSize
	conf.IdleWait = time.Millisecond
	require.NoError(t, conf.Validate())

	group := ipc.NewGroup(conf.PortCapacities())
	status, err := group.DriverEnd(conf.StatusPort)
	require.NoError(t, err)
	blocks, err := group.DriverEnd(conf.BlockPort)
	require.NoError(t, err)

	env := &driverTestEnv{
		t:         t,
		ctx:       context.Background(),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		transport: &fakeTransport{available: true},
		codec:     frame.NewCodec(cmdtable.Default()),
	}
	env.consumer.status, err = group.ConsumerEnd(conf.StatusPort)
	require.NoError(t, err)
	env.consumer.blocks, err = group.ConsumerEnd(conf.BlockPort)
	require.NoError(t, err)

	env.driver, err = New(conf, env.transport, cmdtable.Default(), status, blocks)
	require.NoError(t, err)
	env.driver.Now = func() time.Time { return env.clock }
	env.driver.OnStateChanged = func(_, to State) { env.states = append(env.states, to) }
	env.driver.watchdog = Watchdog{RxTimeout: conf.RxTimeout, TxTimeout: conf.TxTimeout}
	return env
}

func (e *driverTestEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *driverTestEnv) step() {
	e.driver.step(e.ctx)
}

func (e *driverTestEnv) encode(msgs ...frame.Message) []byte {
	raw, err := e.codec.Encode(msgs)
	require.NoError(e.t, err)
	return raw
}

func (e *driverTestEnv) msg(mnemonic string, v int32) frame.Message {
	desc, ok := e.codec.Registry.ByName(mnemonic)
	if !ok {
		return frame.Message{Code: 42, Value: frame.Int(v)}
	}
	return frame.Message{Code: desc.Code, Value: frame.Int(v)}
}

// expectStatus receives all pending status updates flattened as mnemonic=value.
func (e *driverTestEnv) expectStatus(expected ...string) {
	var actual []string
	for {
		p, ok := e.consumer.status.ReceiveFIFO()
		if !ok {
			break
		}
		u := p.(*ipc.StatusUpdate)
		for _, name := range u.Names() {
			actual = append(actual, name+"="+frame.Int(int32(u.Values[name].Value)).String())
		}
	}
	if len(expected) == 0 {
		require.Empty(e.t, actual)
		return
	}
	require.Equal(e.t, expected, actual)
}

func (e *driverTestEnv) expectWritten(expected ...frame.Message) {
	var actual []frame.Message
	for _, raw := range e.transport.conn.takeWritten() {
		msgs, err := e.codec.Decode(raw)
		require.NoError(e.t, err)
		actual = append(actual, msgs...)
	}
	require.Equal(e.t, expected, actual)
}

func TestDriverPublishesStatus(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	require.Equal(t, Connected, env.driver.State())
	env.expectStatus("RJ45_ST=1")

	env.transport.conn.inject(env.encode(env.msg("RTD1", 2500), env.msg("", -7)))
	env.step()
	env.expectStatus("RTD1=2500", "42=-7")
	require.Equal(t, []State{Discovering, Connected}, env.states)
}

func TestDriverDropsMalformedFrames(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	env.expectStatus("RJ45_ST=1")

	good := env.encode(env.msg("RTD2", 1))
	corrupted := append([]byte{}, good...)
	corrupted[2] ^= 0x40
	env.transport.conn.inject([]byte{frame.Start, 1, 2, frame.End}, corrupted, good)
	env.step()
	env.expectStatus("RTD2=1")
	require.Equal(t, Connected, env.driver.State())
}

func TestDriverAlignsChannels(t *testing.T) {
	env := newDriverTestEnv(t, 2)
	env.step()
	env.expectStatus("RJ45_ST=1")

	env.transport.conn.inject(
		env.encode(env.msg("ADC1", 1), env.msg("ADC1", 2), env.msg("ADC1", 3)),
		env.encode(env.msg("ADC2", 10), env.msg("RTD1", 5)),
	)
	env.step()
	env.expectStatus("RTD1=5")
	_, ok := env.consumer.blocks.ReceiveLatest()
	require.False(t, ok)

	env.transport.conn.inject(env.encode(env.msg("ADC2", 20)))
	env.step()
	p, ok := env.consumer.blocks.ReceiveLatest()
	require.True(t, ok)
	blk := p.(*ipc.Block)
	require.Equal(t, []float64{1, 3}, blk.A)
	require.Equal(t, []float64{10, 20}, blk.B)
	require.Len(t, blk.Timestamps, 2)
}

func TestDriverWatchdog(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	env.expectStatus("RJ45_ST=1")

	env.advance(env.driver.Config.RxTimeout + time.Millisecond)
	env.step()
	require.Equal(t, Faulted, env.driver.State())
	env.expectStatus("RJ45_ST=2")
	require.False(t, env.transport.conn.closed)

	// no periodic link-up while faulted
	env.advance(time.Second)
	env.step()
	env.expectStatus()

	env.transport.conn.inject(env.encode(env.msg("RTD1", 3)))
	env.step()
	require.Equal(t, Connected, env.driver.State())
	env.expectStatus("RJ45_ST=1", "RTD1=3")
}

func TestDriverKeepalive(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	env.expectWritten()

	env.advance(env.driver.Config.TxTimeout + time.Millisecond)
	env.step()
	env.expectWritten(frame.Message{Code: 250, Value: frame.Int(8888)})

	env.advance(time.Millisecond)
	env.step()
	env.expectWritten()
}

func TestDriverFlush(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	env.expectStatus("RJ45_ST=1")
	for i := 0; i < 3; i++ {
		env.transport.conn.inject(env.encode(env.msg("RTD1", 0)))
		env.advance(env.driver.Config.FlushInterval)
		env.step()
		env.expectStatus("RTD1=0", "RJ45_ST=1")
	}
}

func TestDriverSendsCommands(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	require.True(t, env.consumer.status.Send(&ipc.Command{Command: "ADC3", Value: 12}))
	require.True(t, env.consumer.status.Send(&ipc.Command{Command: "NOPE", Value: 1}))
	require.True(t, env.consumer.status.Send(&ipc.Command{Command: "111", Value: -1}))
	env.step()
	env.expectWritten(
		frame.Message{Code: 123, Value: frame.Int(12)},
		frame.Message{Code: 111, Value: frame.Int(-1)},
	)
}

func TestDriverReconnects(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.step()
	first := env.transport.conn
	env.expectStatus("RJ45_ST=1")

	first.readErr = errors.New("device unplugged")
	env.step()
	require.True(t, first.closed)
	require.Equal(t, Disconnected, env.driver.State())
	env.expectStatus("RJ45_ST=2")

	env.step()
	require.Equal(t, Connected, env.driver.State())
	require.NotSame(t, first, env.transport.conn)
	require.Equal(t, []State{Discovering, Connected, Disconnected, Discovering, Connected}, env.states)
}

func TestDriverDiscoveryRetry(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.transport.available = false
	env.step()
	require.Equal(t, Discovering, env.driver.State())
	require.Equal(t, 1, env.transport.discovers)

	// not yet due
	env.advance(env.driver.Config.DiscoveryInterval / 2)
	env.step()
	require.Equal(t, 1, env.transport.discovers)

	// a command routes through discovery and is dropped
	require.True(t, env.consumer.status.Send(&ipc.Command{Command: "PING", Value: 1}))
	env.step()
	require.Equal(t, 2, env.transport.discovers)
	require.Equal(t, Discovering, env.driver.State())
	env.expectStatus()

	env.transport.available = true
	env.advance(env.driver.Config.DiscoveryInterval)
	env.step()
	require.Equal(t, Connected, env.driver.State())
}

func TestDriverRunStops(t *testing.T) {
	env := newDriverTestEnv(t, 0)
	env.driver.Now = nil
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.driver.Run(ctx) }()
	require.Eventually(t, func() bool { return env.driver.State() == Connected }, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.Equal(t, context.Canceled, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver didn't stop")
	}
	require.Equal(t, Disconnected, env.driver.State())
}
