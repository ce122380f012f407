package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/mculink/pkg/cmdtable"
	"github.com/robotalks/mculink/pkg/driver"
	"github.com/robotalks/mculink/pkg/env/link"
	fx "github.com/robotalks/mculink/pkg/framework"
	"github.com/robotalks/mculink/pkg/ipc"
)

func init() {
	driver.SetupFlags()
	link.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := driver.NewConfig()
	if err := conf.Validate(); err != nil {
		glog.Exitf("invalid config: %v", err)
	}

	group := ipc.NewGroup(conf.PortCapacities())
	status, err := group.DriverEnd(conf.StatusPort)
	if err != nil {
		glog.Exit(err)
	}
	blocks, err := group.DriverEnd(conf.BlockPort)
	if err != nil {
		glog.Exit(err)
	}
	drv, err := driver.New(*conf, conf.NewTransport(), cmdtable.Default(), status, blocks)
	if err != nil {
		glog.Exit(err)
	}
	drv.OnStateChanged = func(from, to driver.State) {
		glog.Infof("link %s -> %s", from, to)
	}

	l, err := link.NewConfig().Open(link.RoleDriver)
	if err != nil {
		glog.Exitf("open IPC link: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := fx.NewRunnerWith(ctx).HandleSignals()
	runner.Go(drv, ipc.NewBridge(l, group.ConsumerEnds()...))
	runner.Go(l.Runnables()...)
	if err := runner.WaitFirst(); err != nil && err != context.Canceled {
		glog.Errorf("stopped: %v", err)
	}
	cancel()
	// a blocked stdin read may survive Close, a second signal forces the exit.
	l.Close()
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
