package mqtt

import (
	"context"
	"io"
	"sync"
)

// Topic suffixes relative to the instance.
const (
	// TopicUp carries packets from the driver to consumers.
	TopicUp = "up"
	// TopicDown carries packets from consumers to the driver.
	TopicDown = "down"
)

// ReadWriter implements PacketReadWriter on a pair of topics.
type ReadWriter struct {
	Broker   *Broker
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewReadWriter creates the ReadWriter.
func NewReadWriter(b *Broker, sub, pub string) *ReadWriter {
	return &ReadWriter{
		Broker:   b,
		SubTopic: sub,
		PubTopic: pub,
		packetCh: make(chan []byte, 64),
		closeCh:  make(chan struct{}),
	}
}

// ForDriver uses the topics of a driver instance:
// SubTopic = instance/down, PubTopic = instance/up.
func ForDriver(b *Broker, instance string) *ReadWriter {
	return NewReadWriter(b, instance+"/"+TopicDown, instance+"/"+TopicUp)
}

// ForConsumer uses the topics seen from the consumer of a driver instance:
// SubTopic = instance/up, PubTopic = instance/down.
func ForConsumer(b *Broker, instance string) *ReadWriter {
	return NewReadWriter(b, instance+"/"+TopicUp, instance+"/"+TopicDown)
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.closeCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Broker.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })
	return nil
}

// Run implements Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	token := p.Broker.Sub(p.SubTopic, p.handleMsg)
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	defer p.Broker.Unsub(p.SubTopic)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return nil
	}
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.closeCh:
	}
}
