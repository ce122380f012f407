package main

import (
	"github.com/robotalks/mculink/pkg/cli/sh"
	"github.com/robotalks/mculink/pkg/driver"
	"github.com/robotalks/mculink/pkg/env/link"
)

//go-build: CGO_ENABLED=0

func init() {
	driver.SetupFlags()
	link.SetupFlags()
}

func main() {
	sh.Main()
}
