package main

import (
	"github.com/golang/glog"

	"github.com/taktv6/bgpwire/cmd"
)

func main() {
	defer glog.Flush()

	if err := cmd.Execute(); err != nil {
		glog.Exitf("%v", err)
	}
}
