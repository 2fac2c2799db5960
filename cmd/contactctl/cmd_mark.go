package main

import (
	"context"
	"fmt"
	"io"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/model"
	"github.com/portfolio-contact/backend/internal/service"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return runShow(cmd.Context(), cmd.OutOrStdout(), service.NewContactService(e.repo), e.renderer, args[0])
	},
}

var markCmd = &cobra.Command{
	Use:   "mark <id> <unread|read|replied>",
	Short: "Set the status of a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()
		return runMark(cmd.Context(), cmd.OutOrStdout(), service.NewContactService(e.repo), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(markCmd)
}

func runShow(ctx context.Context, out io.Writer, svc service.ContactService, r *dashboard.Renderer, id string) error {
	m, err := svc.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get %s: %w", id, err)
	}
	d := r.Detail(m)
	fmt.Fprintf(out, "Subject:    %s\n", d.SubjectLabel)
	fmt.Fprintf(out, "From:       %s <%s>\n", d.Name, d.Email)
	fmt.Fprintf(out, "Phone:      %s\n", d.Phone)
	fmt.Fprintf(out, "Date:       %s\n", d.Time)
	fmt.Fprintf(out, "Status:     %s\n", d.Status)
	fmt.Fprintf(out, "Newsletter: %s\n", yesNo(d.Newsletter))
	fmt.Fprintf(out, "IP:         %s\n\n", d.IP)
	fmt.Fprintln(out, d.Message)
	return nil
}

func runMark(ctx context.Context, out io.Writer, svc service.ContactService, id, status string) error {
	st, err := model.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %q", err, status)
	}
	if err := svc.UpdateStatus(ctx, id, st); err != nil {
		return fmt.Errorf("mark %s: %w", id, err)
	}
	fmt.Fprintf(out, "%s: %s\n", id, st)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
