package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	env "github.com/robotalks/lst.go/pkg/env/device"
	fx "github.com/robotalks/lst.go/pkg/framework"
	"github.com/robotalks/lst.go/pkg/sim"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	ctx := fx.NewRunner().HandleSignals().Context
	e := env.NewConfig().MustNewEnv(ctx)
	err := fx.NewLoop().
		AddRunnable(e.Runnables()...).
		AddRunnable(fx.NamedRun("device", sim.New(e))).
		Run(ctx)
	if err != nil && err != context.Canceled {
		log.Fatalln(err)
	}
}
