package main

import (
	"github.com/spf13/cobra"

	"github.com/bgricker/ctsrun/internal/output"
	"github.com/bgricker/ctsrun/internal/sequencer"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the CTS modules for the device and the filter each would receive",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := prepare(cmd, false)
	if err != nil {
		return err
	}

	seq := sequencer.New(sequencer.Options{
		Catalog: s.catalog,
		Filters: s.filters,
		Module:  s.cfg.ModuleAPK,
		Log:     s.log,
	})
	steps, err := seq.Plan(s.target.Arch, s.target.Platform)
	if err != nil {
		return err
	}

	list := output.List{Arch: s.target.Arch, Platform: s.target.Platform}
	for _, step := range steps {
		list.Modules = append(list.Modules, output.ListEntry{
			Module: step.Module.Name(),
			APK:    step.Module.APK,
			Filter: step.Directive.String(),
		})
	}
	return render(s.cfg.Format, cmd.OutOrStdout(), func(r output.Renderer) error {
		return r.RenderList(list)
	})
}
