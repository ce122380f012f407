// Package driver owns the device link: discovery, connection state,
// the link watchdog and the translation between frames and IPC payloads.
package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/align"
	"github.com/robotalks/mculink/pkg/cmdtable"
	"github.com/robotalks/mculink/pkg/frame"
	"github.com/robotalks/mculink/pkg/ipc"
)

// Driver runs the single control loop of one device link.
// Status updates are published on Status and commands are consumed from it,
// aligned blocks are published on Blocks.
type Driver struct {
	Config    Config
	Transport Transport
	Codec     *frame.Codec
	Status    *ipc.Port
	Blocks    *ipc.Port
	Aligner   *align.Aligner

	// Now is the clock, time.Now if nil.
	Now func() time.Time
	// OnStateChanged is invoked from the loop on every transition.
	OnStateChanged StateChangedFunc

	state         int32
	conn          Conn
	watchdog      Watchdog
	nextDiscovery time.Time
	lastFlush     time.Time
}

// New creates a Driver. The aligner is created when conf.BlockSize > 0
// and blocks is not nil.
func New(conf Config, transport Transport, registry *cmdtable.Registry, status, blocks *ipc.Port) (*Driver, error) {
	d := &Driver{
		Config:    conf,
		Transport: transport,
		Codec:     frame.NewCodec(registry),
		Status:    status,
		Blocks:    blocks,
	}
	if blocks != nil && conf.BlockSize > 0 {
		al, err := align.New(conf.BlockSize)
		if err != nil {
			return nil, err
		}
		d.Aligner = al
	}
	return d, nil
}

// Name implements Named.
func (d *Driver) Name() string {
	return "driver-" + d.Transport.Name()
}

// State returns the current state, safe to call from any goroutine.
func (d *Driver) State() State {
	return State(atomic.LoadInt32(&d.state))
}

// Run implements Runnable.
func (d *Driver) Run(ctx context.Context) error {
	d.watchdog = Watchdog{RxTimeout: d.Config.RxTimeout, TxTimeout: d.Config.TxTimeout}
	defer d.disconnect()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.step(ctx)
	}
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Driver) setState(s State) {
	from := State(atomic.SwapInt32(&d.state, int32(s)))
	if from == s {
		return
	}
	glog.V(1).Infof("%s: %s -> %s", d.Transport.Name(), from, s)
	if fn := d.OnStateChanged; fn != nil {
		fn(from, s)
	}
}

// step is one iteration of the control loop.
func (d *Driver) step(ctx context.Context) {
	if d.conn == nil {
		if !d.now().Before(d.nextDiscovery) {
			d.discover(ctx)
		}
		d.sendCommands(ctx)
		if d.conn == nil {
			d.idle(ctx)
			return
		}
	}
	d.receive(ctx)
	if ctx.Err() != nil {
		return
	}
	d.sendCommands(ctx)
	d.checkWatchdog(ctx)
	d.flush()
}

func (d *Driver) idle(ctx context.Context) {
	timer := time.NewTimer(d.Config.IdleWait)
	defer timer.Stop()
	var notify <-chan struct{}
	if d.Status != nil {
		notify = d.Status.In.Notify()
	}
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-notify:
	}
}

func (d *Driver) discover(ctx context.Context) bool {
	d.setState(Discovering)
	conn, err := d.Transport.Discover(ctx)
	now := d.now()
	if err != nil {
		d.nextDiscovery = now.Add(d.Config.DiscoveryInterval)
		if errors.Is(err, ErrDeviceNotFound) {
			glog.V(1).Infof("%v, retry in %v", err, d.Config.DiscoveryInterval)
		} else {
			glog.Warningf("discovery failed: %v, retry in %v", err, d.Config.DiscoveryInterval)
		}
		return false
	}
	d.conn = conn
	d.watchdog.Reset(now)
	d.lastFlush = now
	d.setState(Connected)
	glog.Infof("%s connected", d.Transport.Name())
	d.publishLink(now, d.Config.LinkUpValue)
	return true
}

func (d *Driver) fail(err error) {
	glog.Errorf("%s: %v", d.Transport.Name(), err)
	d.disconnect()
	d.nextDiscovery = d.now()
	d.publishLink(d.now(), d.Config.LinkDownValue)
}

func (d *Driver) disconnect() {
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			glog.Warningf("close: %v", err)
		}
		d.conn = nil
	}
	d.setState(Disconnected)
}

func (d *Driver) receive(ctx context.Context) {
	frames, err := d.conn.ReadFrames()
	if err != nil {
		d.fail(&TransportError{Op: "read", Err: err})
		return
	}
	for _, raw := range frames {
		if ctx.Err() != nil {
			return
		}
		msgs, err := d.Codec.Decode(raw)
		if err != nil {
			glog.Warningf("frame dropped: %v: % X", err, raw)
			continue
		}
		now := d.now()
		glog.V(2).Infof("RX %v", msgs)
		d.watchdog.Received(now)
		if d.State() == Faulted {
			d.setState(Connected)
			glog.Infof("%s link recovered", d.Transport.Name())
			d.publishLink(now, d.Config.LinkUpValue)
			d.lastFlush = now
		}
		for _, msg := range msgs {
			d.dispatch(now, msg)
		}
	}
}

func (d *Driver) dispatch(now time.Time, msg frame.Message) {
	name := d.Codec.Registry.Name(msg.Code)
	val := msg.Value.Float64()
	if d.Aligner != nil {
		var blk *align.Block
		var ok bool
		switch name {
		case d.Config.ChannelA:
			blk, ok = d.Aligner.AddA(now, val)
		case d.Config.ChannelB:
			blk, ok = d.Aligner.AddB(now, val)
		default:
			d.publish(ipc.NewStatusUpdate(name, now, val))
			return
		}
		if ok && !d.Blocks.Send((*ipc.Block)(blk)) {
			glog.Warningf("port %s: queue full, block dropped", d.Blocks.Name)
		}
		return
	}
	d.publish(ipc.NewStatusUpdate(name, now, val))
}

func (d *Driver) publish(u *ipc.StatusUpdate) {
	if d.Status == nil {
		return
	}
	if !d.Status.Send(u) {
		glog.Warningf("port %s: queue full, %v dropped", d.Status.Name, u.Names())
	}
}

func (d *Driver) publishLink(now time.Time, val float64) {
	if d.Config.LinkStatus != "" {
		d.publish(ipc.NewStatusUpdate(d.Config.LinkStatus, now, val))
	}
}

func (d *Driver) sendCommands(ctx context.Context) {
	if d.Status == nil {
		return
	}
	for ctx.Err() == nil {
		p, ok := d.Status.ReceiveFIFO()
		if !ok {
			return
		}
		cmd, ok := p.(*ipc.Command)
		if !ok {
			glog.Warningf("port %s: unexpected %s payload ignored", d.Status.Name, p.Kind())
			continue
		}
		d.SendCommand(ctx, cmd.Command, cmd.Value)
	}
}

// SendCommand encodes and writes a command, discovering the device first if
// not connected. It must be called from the loop goroutine.
func (d *Driver) SendCommand(ctx context.Context, mnemonic string, val float64) error {
	desc, ok := d.Codec.Registry.ByName(mnemonic)
	if !ok {
		err := &cmdtable.UnknownCommandError{Key: mnemonic}
		glog.Warningf("%v: command dropped", err)
		return err
	}
	var v frame.Value
	if desc.Kind == cmdtable.Float32 {
		v = frame.Float(float32(val))
	} else {
		v = frame.Int(int32(val))
	}
	return d.write(ctx, frame.Message{Code: desc.Code, Value: v})
}

func (d *Driver) write(ctx context.Context, msgs ...frame.Message) error {
	raw, err := d.Codec.Encode(msgs)
	if err != nil {
		glog.Warningf("encode %v: %v", msgs, err)
		return err
	}
	if d.conn == nil && !d.discover(ctx) {
		glog.Warningf("%v: %v dropped", ErrNotConnected, msgs)
		return ErrNotConnected
	}
	if err := d.conn.WriteFrame(raw); err != nil {
		err = &TransportError{Op: "write", Err: err}
		d.fail(err)
		return err
	}
	d.watchdog.Sent(d.now())
	glog.V(2).Infof("TX %v: % X", msgs, raw)
	return nil
}

func (d *Driver) checkWatchdog(ctx context.Context) {
	if !d.State().HasConn() {
		return
	}
	now := d.now()
	if d.State() == Connected && d.watchdog.RxExpired(now) {
		d.setState(Faulted)
		glog.Warningf("%s: no valid frame since %v, link faulted", d.Transport.Name(), d.watchdog.LastRx().Format(time.RFC3339Nano))
		d.publishLink(now, d.Config.LinkDownValue)
	}
	if d.watchdog.TxIdle(now) && d.Config.KeepaliveCommand != "" {
		d.SendCommand(ctx, d.Config.KeepaliveCommand, d.Config.KeepaliveValue)
	}
}

func (d *Driver) flush() {
	if d.State() != Connected || d.Config.FlushInterval <= 0 {
		return
	}
	now := d.now()
	if now.Sub(d.lastFlush) >= d.Config.FlushInterval {
		d.lastFlush = now
		d.publishLink(now, d.Config.LinkUpValue)
	}
}
