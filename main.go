package main

import (
	"time"

	"github.com/eric2788/framestudio/internal/controllers/workstation"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/modules/rest"
	"github.com/eric2788/framestudio/internal/modules/studio"
	"github.com/eric2788/framestudio/internal/services/codec"
	"go.uber.org/fx"
)

func main() {

	app := fx.New(
		config.Module,
		codec.Module,
		studio.Module,
		rest.Module,

		fx.Invoke(workstation.NewController),

		fx.StartTimeout(15*time.Second),
	)

	app.Run()
}
