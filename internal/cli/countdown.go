package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aura-webinar/livestream/internal/landing"
	"github.com/aura-webinar/livestream/internal/tui"
)

func newCountdownCmd(opts *options) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "countdown <webinarId>",
		Short: "Show a webinar's landing page and count down to its start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := opts.client().Landing(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if once {
				fmt.Fprintln(cmd.OutOrStdout(), countdownLine(page, opts.joinBase()))
				return nil
			}
			_, err = tea.NewProgram(tui.NewCountdownModel(page, opts.joinBase())).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the countdown once instead of running the live view")
	return cmd
}

func countdownLine(page *landing.Page, joinBase string) string {
	name := page.Webinar.Name
	switch {
	case !page.Countdown.Finished:
		return fmt.Sprintf("%s starts in %s", name, tui.FormatCountdown(page.Countdown))
	case page.CanJoin:
		return fmt.Sprintf("%s has started. Join: %s%s", name, strings.TrimRight(joinBase, "/"), page.JoinPath)
	}
	return fmt.Sprintf("%s has started, but no livestream is configured", name)
}
