package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/lever-ats-client/pkg/tools"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "list",
		Short:       "List the available tools",
		Annotations: map[string]string{skipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderTools(a, tools.NewRegistry(nil).List())
			return nil
		},
	}
}

func renderTools(a *app, list []tools.Tool) {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tool", "Params", "Description"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, tool := range list {
		name := tool.Name
		if tool.Destructive {
			name += " (!)"
		}
		t.AppendRow(table.Row{name, formatParams(tool.Params), tool.Description})
	}
	t.Render()
}

// formatParams marks required parameters with an asterisk.
func formatParams(params []tools.Param) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p.Required {
			names = append(names, p.Name+"*")
		} else {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}
