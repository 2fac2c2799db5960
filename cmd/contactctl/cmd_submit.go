package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/portfolio-contact/backend/internal/iplookup"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/portfolio-contact/backend/internal/service"
	"github.com/portfolio-contact/backend/internal/validation"
	"github.com/spf13/cobra"
)

var submission service.ContactSubmission

// submitCmd sends one message through the same validation and write path as
// the HTTP endpoint. The sender IP is looked up through the public IP service.
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a contact message",
	Example: `  contactctl submit --name "Jane Doe" --email jane@example.com \
    --subject project --message "I would like to talk about a project."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		schema := validation.DefaultSchema()
		if path := e.cfg.Dashboard.FormSchemaPath; path != "" {
			if schema, err = validation.LoadSchema(path); err != nil {
				return err
			}
		}
		lookup := iplookup.NewClient(e.cfg.IPLookup.URL, e.cfg.IPLookup.Timeout)
		return runSubmit(cmd.Context(), cmd.OutOrStdout(), e.repo, schema, lookup, submission)
	},
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submission.Name, "name", "", "Sender name")
	f.StringVar(&submission.Email, "email", "", "Sender email")
	f.StringVar(&submission.Phone, "phone", "", "Sender phone (optional)")
	f.StringVar(&submission.Subject, "subject", "", "Subject: project, job, collaboration or other")
	f.StringVar(&submission.Message, "message", "", "Message text")
	f.BoolVar(&submission.Newsletter, "newsletter", false, "Opt in to the newsletter")
}

func runSubmit(ctx context.Context, out io.Writer, repo repository.ContactRepository, schema *validation.Schema, ip service.IPResolver, sub service.ContactSubmission) error {
	svc := service.NewContactService(repo,
		service.WithSchema(schema),
		service.WithIPResolver(ip),
	)

	msg, err := svc.Submit(ctx, sub)
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		fmt.Fprintln(out, service.MsgFixErrors)
		names := make([]string, 0, len(verrs.Fields))
		for name := range verrs.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s: %s\n", name, verrs.Fields[name])
		}
		return err
	}
	if err != nil {
		fmt.Fprintln(out, service.MsgSomethingFailed)
		return err
	}

	fmt.Fprintln(out, service.MsgSubmitted)
	fmt.Fprintf(out, "id: %s\n", msg.ID)
	return nil
}
