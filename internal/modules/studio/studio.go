package studio

import (
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/copier"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/exporter"
	"github.com/eric2788/framestudio/internal/services/file"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/path"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/internal/services/workspace"
	"github.com/eric2788/framestudio/internal/services/workstation"
	"go.uber.org/fx"
)

func exporterProvider(ix *indexer.Indexer, orch *orchestrator.Orchestrator, fc copier.FileCopier) *exporter.Exporter {
	return exporter.NewService(ix, orch, fc)
}

// Module wires the conversion services. It expects config.Module and
// codec.Module to be present in the same app.
var Module = fx.Module("studio",
	fx.Provide(
		workspace.NewService,
		cancel.NewService,
		display.NewService,
		fx.Annotate(search.NewService, fx.As(new(search.FileSystemSearch))),
		fx.Annotate(copier.NewService, fx.As(new(copier.FileCopier))),
		indexer.NewService,
		orchestrator.NewService,
		exporterProvider,
		workstation.NewService,
		path.NewService,
		file.NewService,
	),
)
