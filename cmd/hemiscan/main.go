package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup SetupCommand `command:"setup" description:"Write the parameter file interactively"`
	Plan  PlanCommand  `command:"plan" description:"Generate the hemisphere viewpoint set without moving the arm"`
	Scan  ScanCommand  `command:"scan" description:"Drive the arm through every viewpoint"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Hemiscan - hemisphere viewpoint scanning for a robot arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
