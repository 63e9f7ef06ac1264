package main

import (
	"github.com/robotalks/lst.go/pkg/cli/sh"
	env "github.com/robotalks/lst.go/pkg/env/term"

	_ "github.com/robotalks/lst.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
