package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/spf13/cobra"
)

var listStatus, listSearch, listSort string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the filtered message list",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return runList(cmd.Context(), cmd.OutOrStdout(), e.repo, e.renderer, dashboard.ParseFilter(listStatus, listSearch, listSort))
	},
}

func init() {
	addFilterFlags(listCmd, &listStatus, &listSearch, &listSort)
}

func runList(ctx context.Context, out io.Writer, repo repository.ContactRepository, r *dashboard.Renderer, f dashboard.Filter) error {
	state, err := loadView(ctx, repo, f)
	if err != nil {
		return err
	}
	vm := r.ViewModel(state)

	fmt.Fprintf(out, "%s, %s\n", vm.TotalLabel, vm.UnreadLabel)
	if vm.Empty {
		fmt.Fprintln(out, "No messages found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDATE\tNAME\tEMAIL\tSUBJECT\tPREVIEW")
	for _, c := range vm.Cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Status, c.TimeAgo, c.Name, c.Email, c.SubjectLabel, oneLine(c.Preview))
	}
	return tw.Flush()
}

// oneLine keeps multi-line previews on their table row.
func oneLine(s string) string {
	b := []rune(s)
	for i, r := range b {
		if r == '\n' || r == '\r' || r == '\t' {
			b[i] = ' '
		}
	}
	return string(b)
}
