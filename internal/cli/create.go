package cli

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/internal/tui"
	"github.com/aura-webinar/livestream/internal/wizard"
)

type createFlags struct {
	hostID      string
	name        string
	description string
	date        string
	time        string
	period      string
	ctaLabel    string
	ctaType     string
	tags        string
	product     string
	thumbnail   string
	noTUI       bool
}

func newCreateCmd(opts *options) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a webinar with the step-by-step wizard",
		Long: `Runs the creation wizard in the terminal. With --no-tui (or --name set) the draft is
taken from flags and walked through the same steps without prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := wizard.New(uuid.NewString(), f.hostID)
			client := opts.client()
			if f.noTUI || f.name != "" {
				return runCreateFromFlags(cmd, w, client, f, opts.joinBase())
			}

			final, err := tea.NewProgram(tui.NewWizardModel(cmd.Context(), w, client)).Run()
			if err != nil {
				return fmt.Errorf("wizard: %w", err)
			}
			m := final.(tui.WizardModel)
			if path := m.LandingPath(); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Landing page: %s%s\n", strings.TrimRight(opts.joinBase(), "/"), path)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.hostID, "host-id", "", "identity the host token is bound to")
	fl.StringVar(&f.name, "name", "", "webinar name")
	fl.StringVar(&f.description, "description", "", "webinar description")
	fl.StringVar(&f.date, "date", "", "start date, yyyy-mm-dd")
	fl.StringVar(&f.time, "time", "12:00", "start time, HH:mm")
	fl.StringVar(&f.period, "period", string(models.PeriodAM), "AM or PM")
	fl.StringVar(&f.ctaLabel, "cta-label", "", "call-to-action label")
	fl.StringVar(&f.ctaType, "cta-type", string(models.CTABuy), "call-to-action type: buy or book")
	fl.StringVar(&f.tags, "tags", "", "comma-separated tags")
	fl.StringVar(&f.product, "product", "", "promoted product")
	fl.StringVar(&f.thumbnail, "thumbnail", "", "thumbnail URL (default image when empty)")
	fl.BoolVar(&f.noTUI, "no-tui", false, "do not start the interactive wizard")
	return cmd
}

func runCreateFromFlags(cmd *cobra.Command, w *wizard.Wizard, creator wizard.Creator, f *createFlags, joinBase string) error {
	d := w.Draft
	d.Name = f.name
	d.Description = f.description
	d.Date = f.date
	d.Time = f.time
	d.Period = models.Period(strings.ToUpper(f.period))
	d.CTALabel = f.ctaLabel
	d.CTAType = models.CTAType(strings.ToLower(f.ctaType))
	d.Tags = f.tags
	d.Product = f.product
	if f.thumbnail != "" {
		d.Thumbnail = f.thumbnail
	}
	if d.Period != models.PeriodAM && d.Period != models.PeriodPM {
		return fmt.Errorf("--period must be AM or PM, got %q", f.period)
	}
	if d.CTAType != models.CTABuy && d.CTAType != models.CTABook {
		return fmt.Errorf("--cta-type must be buy or book, got %q", f.ctaType)
	}

	steps := []func() error{
		func() error { return w.UpdateDraft(d) },
		w.Next,
		w.Next,
		func() error { return w.Submit(cmd.Context(), creator) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	path, err := w.Finish()
	if err != nil {
		return err
	}
	printCreated(cmd.OutOrStdout(), w.Created, strings.TrimRight(joinBase, "/")+path)
	return nil
}

func printCreated(out io.Writer, w *models.Webinar, landingURL string) {
	if w == nil {
		return
	}
	fmt.Fprintf(out, "Created webinar %q\n", w.Name)
	fmt.Fprintf(out, "  id:         %s\n", w.ID)
	fmt.Fprintf(out, "  call:       %s\n", w.StreamCallID)
	fmt.Fprintf(out, "  starts:     %s %s %s\n", w.Date, w.Time, w.Period)
	fmt.Fprintf(out, "  landing:    %s\n", landingURL)
	if w.StreamToken != "" {
		fmt.Fprintf(out, "  host token: %s\n", w.StreamToken)
		fmt.Fprintln(out, "Keep the host token: presenting it on the live page grants go-live controls.")
	}
}
