package main

import (
	"context"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/modules/studio"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/workstation"
	"go.uber.org/fx"
)

type commandContext struct {
	workspaceDir string
	codec        string
}

type services struct {
	Config       *config.Config
	Codec        codec.FrameCodec
	Orchestrator *orchestrator.Orchestrator
	Workstation  *workstation.Workstation
}

func (c *commandContext) decorate(cfg *config.Config) *config.Config {
	if c.workspaceDir != "" {
		cfg.WorkspaceDir = c.workspaceDir
	}
	if c.codec != "" {
		cfg.Codec = c.codec
	}
	return cfg
}

// withServices starts the conversion services for the duration of fn.
func (c *commandContext) withServices(ctx context.Context, fn func(svc services) error) error {
	var svc services
	app := fx.New(
		config.Module,
		fx.Decorate(c.decorate),
		codec.Module,
		studio.Module,
		fx.Populate(&svc.Config, &svc.Codec, &svc.Orchestrator, &svc.Workstation),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(context.Background())
	return fn(svc)
}
