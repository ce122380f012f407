package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/cmdtable"
	"github.com/robotalks/mculink/pkg/driver"
	"github.com/robotalks/mculink/pkg/env/link"
	fx "github.com/robotalks/mculink/pkg/framework"
	"github.com/robotalks/mculink/pkg/ipc"
)

var (
	interval = 100 * time.Millisecond
)

func init() {
	driver.SetupFlags()
	link.SetupFlags()
	flag.DurationVar(&interval, "interval", interval, "Polling interval.")
}

type monitor struct {
	status *ipc.Port
	blocks *ipc.Port
}

func (m *monitor) Control(fx.ControlContext) error {
	for {
		p, ok := m.status.ReceiveFIFO()
		if !ok {
			break
		}
		u, ok := p.(*ipc.StatusUpdate)
		if !ok {
			continue
		}
		for _, name := range u.Names() {
			r := u.Values[name]
			glog.Infof("%s %s = %v%s", r.At.Format(time.RFC3339Nano), name, r.Value, statusFields(name, r.Value))
		}
	}
	if p, ok := m.blocks.ReceiveLatest(); ok {
		if blk, ok := p.(*ipc.Block); ok && len(blk.Timestamps) > 0 {
			n := len(blk.Timestamps)
			glog.Infof("block %d samples %s .. %s A[last]=%v B[last]=%v",
				n, blk.Timestamps[0].Format(time.RFC3339Nano), blk.Timestamps[n-1].Format(time.RFC3339Nano),
				blk.A[n-1], blk.B[n-1])
		}
	}
	return nil
}

func statusFields(name string, val float64) string {
	if name != cmdtable.AllStatus {
		return ""
	}
	fields := cmdtable.DecodeStatusWord(uint32(int64(val)))
	items := make([]string, 0, len(cmdtable.StatusFields))
	for _, field := range cmdtable.StatusFields {
		items = append(items, fmt.Sprintf("%s=%s", field, fields[field]))
	}
	return " [" + strings.Join(items, " ") + "]"
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := driver.NewConfig()
	group := ipc.NewGroup(conf.PortCapacities())
	status, err := group.ConsumerEnd(conf.StatusPort)
	if err != nil {
		glog.Exit(err)
	}
	blocks, err := group.ConsumerEnd(conf.BlockPort)
	if err != nil {
		glog.Exit(err)
	}

	l, err := link.NewConfig().Open(link.RoleConsumer)
	if err != nil {
		glog.Exitf("open IPC link: %v", err)
	}
	defer l.Close()

	loop := fx.NewLoop()
	loop.Interval = interval
	loop.AddController(&monitor{status: status, blocks: blocks})
	loop.AddRunnable(ipc.NewBridge(l, group.DriverEnds()...))
	loop.AddRunnable(l.Runnables()...)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(loop)
	if err := runner.Wait(); err != nil && err != context.Canceled {
		glog.Exit(err)
	}
}
