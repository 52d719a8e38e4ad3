package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Issue a stream token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := opts.client().IssueToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tok)
			}
			fmt.Fprintf(out, "userId: %s\napiKey: %s\ntoken:  %s\n", tok.UserID, tok.APIKey, tok.Token)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}
