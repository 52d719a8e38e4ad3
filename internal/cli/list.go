package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List webinars, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.client().ListWebinars(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no webinars")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "NAME", "STARTS", "STREAM", "CTA")
			for _, w := range list {
				stream := "-"
				if w.HasStream() {
					stream = w.StreamCallID
				}
				t.Row(w.ID, w.Name, fmt.Sprintf("%s %s %s", w.Date, w.Time, w.Period), stream, string(w.CTAType))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
}
