package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/nexuscrm/tenantcrm/internal/cli"
)

func main() {
	// Make glog believe the flags were parsed; cobra owns the command line.
	_ = flag.CommandLine.Parse([]string{})

	// Always log to stderr by default, required for glog.
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Info("Unable to set logtostderr to true.")
	}

	err := cli.Command().ExecuteContext(context.Background())
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
