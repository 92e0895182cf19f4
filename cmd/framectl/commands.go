package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/pkg/ds"
	"github.com/eric2788/framestudio/utils"
	"github.com/spf13/cobra"
)

func allFrames(svc services) ds.Set[int] {
	ids := ds.NewSet[int]()
	for _, frame := range svc.Workstation.Frames() {
		ids.Add(frame.ID)
	}
	return ids
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "extract <container>",
		Short: "Split a container into png frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withServices(cmd.Context(), func(svc services) error {
				if err := svc.Workstation.OpenContainer(src).Wait(cmd.Context()); err != nil {
					return err
				}
				frames := svc.Workstation.Frames()
				fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d frames from %s\n", len(frames), filepath.Base(src))
				if outDir == "" {
					for _, frame := range frames {
						fmt.Fprintln(cmd.OutOrStdout(), frame.Path)
					}
					return nil
				}
				copied, failed, err := svc.Workstation.SaveSelectionAsFiles(cmd.Context(), allFrames(svc), outDir, overwrite)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Copied %d frames to %s (%d skipped)\n", copied, outDir, failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Copy the frames into this directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files in the output directory")
	return cmd
}

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var target string
	var sortNatural bool

	cmd := &cobra.Command{
		Use:   "assemble <frame>...",
		Short: "Assemble still images into one container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				p, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				paths = append(paths, p)
			}
			if sortNatural {
				search.SortNatural(paths)
			}
			if target == "" {
				target = utils.ChangePathFormat(paths[0], "gif")
			}
			return ctx.withServices(cmd.Context(), func(svc services) error {
				if err := svc.Orchestrator.AssembleContainer(paths, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assembled %d frames into %s\n", len(paths), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&target, "out", "o", "", "Target container path (defaults to the first frame with a .gif extension)")
	cmd.Flags().BoolVar(&sortNatural, "sort", false, "Order frames by natural file name order instead of argument order")
	return cmd
}

func newFolderCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "folder <dir>",
		Short: "Assemble every image of a folder into one container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withServices(cmd.Context(), func(svc services) error {
				if err := svc.Workstation.OpenFolder(dir).Wait(cmd.Context()); err != nil {
					return err
				}
				state, err := svc.Workstation.State(cmd.Context())
				if err != nil {
					return err
				}
				if target == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Created %s from %d images\n", state.CurrentContainerPath, state.Frames.Len())
					return nil
				}
				if err := svc.Workstation.SaveSelectionAsContainer(allFrames(svc), target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s from %d images\n", target, state.Frames.Len())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&target, "out", "o", "", "Write the container here instead of the workspace")
	return cmd
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <container>",
		Short: "Show frame count, dimensions and size of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.IsFileExists(args[0]) {
				return fmt.Errorf("%s does not exist or is empty", args[0])
			}
			return ctx.withServices(cmd.Context(), func(svc services) error {
				meta, ok := svc.Codec.GetContainerMetadata(cmd.Context(), args[0])
				if !ok {
					return fmt.Errorf("cannot read metadata of %s with the %s codec", args[0], svc.Codec.Name())
				}
				if asJSON {
					fmt.Fprintln(cmd.OutOrStdout(), utils.PrettyPrintJSON(meta))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames, %dx%d, %s\n",
					filepath.Base(args[0]), meta.FrameCount, meta.Width, meta.Height, humanize.Bytes(uint64(meta.SizeBytes)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print metadata as JSON")
	return cmd
}
