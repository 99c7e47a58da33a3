package main

import (
	"github.com/sirupsen/logrus"

	"github.com/shipctl/ship/cmd"
)

// init sets the initial logging level, overridden by --log-level, --debug or --trace.
func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

// main is the entry point of ship.
func main() {
	cmd.Execute()
}
