package ipc

import (
	"fmt"
	"sort"
)

// Port is one end of a named pair of queues.
// The owner of the end produces into Out and consumes from In.
type Port struct {
	Name string
	Out  *Queue
	In   *Queue
}

// Send enqueues to the outbound queue.
func (p *Port) Send(payload Payload) bool {
	return p.Out.Send(payload)
}

// ReceiveFIFO pops the oldest inbound payload.
func (p *Port) ReceiveFIFO() (Payload, bool) {
	return p.In.ReceiveFIFO()
}

// ReceiveLatest drains the inbound queue keeping the newest payload.
func (p *Port) ReceiveLatest() (Payload, bool) {
	return p.In.ReceiveLatest()
}

// Group is the set of ports shared by a driver and its consumer.
// Ports are created once and never resized.
type Group struct {
	pairs map[string]*queuePair
}

type queuePair struct {
	up   *Queue // driver to consumer
	down *Queue // consumer to driver
}

// NewGroup creates ports from names and capacities, 0 for unbounded.
func NewGroup(capacities map[string]int) *Group {
	g := &Group{pairs: make(map[string]*queuePair, len(capacities))}
	for name, capacity := range capacities {
		g.pairs[name] = &queuePair{up: NewQueue(capacity), down: NewQueue(capacity)}
	}
	return g
}

// Names returns the port names in sorted order.
func (g *Group) Names() []string {
	names := make([]string, 0, len(g.pairs))
	for name := range g.pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Group) pair(name string) (*queuePair, error) {
	pair := g.pairs[name]
	if pair == nil {
		return nil, fmt.Errorf("unknown port %q", name)
	}
	return pair, nil
}

// DriverEnd returns the driver side of a port.
func (g *Group) DriverEnd(name string) (*Port, error) {
	pair, err := g.pair(name)
	if err != nil {
		return nil, err
	}
	return &Port{Name: name, Out: pair.up, In: pair.down}, nil
}

// ConsumerEnd returns the consumer side of a port.
func (g *Group) ConsumerEnd(name string) (*Port, error) {
	pair, err := g.pair(name)
	if err != nil {
		return nil, err
	}
	return &Port{Name: name, Out: pair.down, In: pair.up}, nil
}

// DriverEnds returns the driver side of all ports.
func (g *Group) DriverEnds() []*Port {
	return g.ends((*Group).DriverEnd)
}

// ConsumerEnds returns the consumer side of all ports.
func (g *Group) ConsumerEnds() []*Port {
	return g.ends((*Group).ConsumerEnd)
}

func (g *Group) ends(endFn func(*Group, string) (*Port, error)) []*Port {
	names := g.Names()
	ports := make([]*Port, 0, len(names))
	for _, name := range names {
		if port, err := endFn(g, name); err == nil {
			ports = append(ports, port)
		}
	}
	return ports
}
