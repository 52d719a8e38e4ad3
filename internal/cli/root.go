// Package cli implements webinarctl, the operator command line for the webinar server.
package cli

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

type options struct {
	server    string
	publicURL string
	timeout   time.Duration
}

func (o *options) client() *APIClient {
	return NewAPIClient(o.server, o.timeout)
}

// joinBase is where join links point; the server itself unless a public URL is set.
func (o *options) joinBase() string {
	if o.publicURL != "" {
		return o.publicURL
	}
	return o.server
}

// NewRootCommand builds the webinarctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "webinarctl",
		Short:         "Operate the webinar livestream server",
		Long:          `Create webinars, issue stream tokens and watch countdowns. Commands: create, list, token, countdown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("WEBINARCTL_SERVER", defaultServer), "webinar server base URL")
	root.PersistentFlags().StringVar(&opts.publicURL, "public-url", os.Getenv("PUBLIC_BASE_URL"), "base URL used in printed join links")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP request timeout")

	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newCreateCmd(opts))
	root.AddCommand(newCountdownCmd(opts))
	return root
}

// Execute runs webinarctl and returns the error (for main to report).
func Execute() error {
	_ = godotenv.Load(".env")
	return NewRootCommand().Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
