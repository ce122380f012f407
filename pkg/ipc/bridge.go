package ipc

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/mculink/pkg/framework"
)

// Bridge extends port ends across a process boundary over a packet link.
// Payloads consumed from the In queue of each port are written to the link,
// packets read from the link are delivered to the Out queue of the named port.
//
// A driver process bridges the consumer ends of its group, and a consumer
// process bridges the driver ends of its own group.
type Bridge struct {
	Link  PacketReadWriter
	Ports map[string]*Port

	sendLock sync.Mutex
}

// NewBridge creates a Bridge for ports.
func NewBridge(link PacketReadWriter, ports ...*Port) *Bridge {
	b := &Bridge{Link: link, Ports: make(map[string]*Port, len(ports))}
	for _, port := range ports {
		b.Ports[port.Name] = port
	}
	return b
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "bridge"
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	for _, port := range b.Ports {
		wg.Add(1)
		go func(port *Port) {
			defer wg.Done()
			b.forward(ctx, port)
		}(port)
	}
	return fx.RunWithContextCloser(ctx, b, b.receive)
}

// Close implements io.Closer.
func (b *Bridge) Close() error {
	if closer, ok := b.Link.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (b *Bridge) forward(ctx context.Context, port *Port) {
	for {
		for {
			p, ok := port.In.ReceiveFIFO()
			if !ok {
				break
			}
			if err := b.send(port.Name, p); err != nil {
				glog.Warningf("port %s: %s dropped: %v", port.Name, p.Kind(), err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-port.In.Notify():
		}
	}
}

func (b *Bridge) send(name string, p Payload) error {
	pkt, err := EncodeEnvelope(name, p)
	if err != nil {
		return err
	}
	glog.V(2).Infof("SND %s %s %d bytes", name, p.Kind(), len(pkt))
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	return b.Link.WritePacket(pkt)
}

func (b *Bridge) receive() error {
	for {
		pkt, err := b.Link.ReadPacket()
		if err != nil {
			return err
		}
		name, p, err := DecodeEnvelope(pkt)
		if err != nil {
			glog.Warningf("invalid packet ignored: %v", err)
			continue
		}
		port := b.Ports[name]
		if port == nil {
			glog.Warningf("packet for unknown port %q ignored", name)
			continue
		}
		glog.V(2).Infof("RCV %s %s", name, p.Kind())
		if !port.Out.Send(p) {
			glog.Warningf("port %s: queue full, %s dropped", name, p.Kind())
		}
	}
}
