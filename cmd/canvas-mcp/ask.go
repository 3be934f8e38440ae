package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		conversationID string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Answer a question from the cached Canvas data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.engine.Ask(cmd.Context(), strings.Join(args, " "), conversationID)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Response)
			if len(resp.Suggestions) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Try: "+strings.Join(resp.Suggestions, " | "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
