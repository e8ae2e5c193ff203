package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"citizenportal/internal/app"
	"citizenportal/internal/domain"
	"citizenportal/internal/engine"
)

func referenceCmd() *cobra.Command {
	ref := &cobra.Command{Use: "reference", Short: "Reference ids"}
	ref.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Reserve a reference id for an idempotent submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				id, err := rt.Engine.NewReference()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"referenceId": id})
				}
				fmt.Println(id)
				return nil
			})
		},
	})
	return ref
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{
		Use:   "request",
		Short: "Manage service requests",
	}
	req.AddCommand(requestSubmitCmd())
	req.AddCommand(requestStatusCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestTransitionCmd())
	req.AddCommand(requestDocumentCmd())
	req.AddCommand(requestStatsCmd())
	return req
}

func requestSubmitCmd() *cobra.Command {
	var opts engine.SubmitOptions
	var attachments []string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range attachments {
				in, err := attachmentFromFile(a)
				if err != nil {
					return err
				}
				opts.Attachments = append(opts.Attachments, in)
			}
			opts.ActorID = viper.GetString("actor-id")
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.Submit(ctx, opts)
				if err != nil {
					var verr *domain.ValidationError
					if errors.As(err, &verr) && !viper.GetBool("json") {
						for _, f := range verr.Fields {
							fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Reason)
						}
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if res.Replayed {
					fmt.Println("already submitted:", res.Request.ReferenceID)
				} else {
					fmt.Println("submitted:", res.Request.ReferenceID)
				}
				for _, r := range res.Rejected {
					fmt.Fprintln(os.Stderr, "  attachment skipped:", r)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ReferenceID, "reference", "", "pre-generated reference id (makes retries idempotent)")
	f.StringVar(&opts.Candidate.FullName, "full-name", "", "citizen full name")
	f.StringVar(&opts.Candidate.Phone, "phone", "", "phone number, e.g. +211123456789")
	f.StringVar(&opts.Candidate.Email, "email", "", "email address")
	f.StringVar(&opts.Candidate.NationalID, "national-id", "", "national id number")
	f.StringVar(&opts.Candidate.PreferredContact, "contact", "phone", "preferred contact method (phone, sms, email, in-person)")
	f.StringVar(&opts.Candidate.Category, "category", "", "request category")
	f.StringVar(&opts.Candidate.ServiceType, "service", "", "service within the category")
	f.StringVar(&opts.Candidate.Priority, "priority", "medium", "priority (low, medium, high)")
	f.StringVar(&opts.Candidate.Title, "title", "", "short title")
	f.StringVar(&opts.Candidate.Description, "description", "", "description")
	f.StringArrayVar(&attachments, "attach", nil, "file to record as an attachment (metadata only, repeatable)")
	return cmd
}

// attachmentFromFile records name and size; content is never stored.
func attachmentFromFile(path string) (engine.AttachmentInput, error) {
	st, err := os.Stat(path)
	if err != nil {
		return engine.AttachmentInput{}, err
	}
	return engine.AttachmentInput{Name: st.Name(), Size: st.Size()}, nil
}

func requestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <reference-id>",
		Short: "Look up a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.Lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"request": res.Request, "source": res.Source})
				}
				r := res.Request
				fmt.Printf("%s  %s\n", r.ReferenceID, r.Title)
				fmt.Printf("Status: %s (%d%%)\n", domain.StatusLabel(r.Status), r.Progress)
				if r.AssignedTo != "" {
					fmt.Println("Assigned to:", r.AssignedTo)
				}
				if r.EstimatedCompletion != "" {
					fmt.Println("Estimated completion:", r.EstimatedCompletion)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Status", "Description", "By"})
				for _, ev := range r.Timeline {
					tw.AppendRow(table.Row{ev.Date, ev.Status, ev.Description, ev.By})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func requestListCmd() *cobra.Command {
	var opts engine.ListOptions
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				s, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				opts.Status = s
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.List(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"items": res.Requests, "next_cursor": res.NextCursor})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Title", "Category", "Priority", "Status", "Progress", "Submitted"})
				for _, r := range res.Requests {
					tw.AppendRow(table.Row{r.ReferenceID, r.Title, r.Category, r.Priority, r.Status, fmt.Sprintf("%d%%", r.Progress), r.SubmittedAt})
				}
				tw.Render()
				if res.NextCursor != "" {
					fmt.Println("next cursor:", res.NextCursor)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category filter")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "cursor from a previous page")
	return cmd
}

func requestTransitionCmd() *cobra.Command {
	var opts engine.TransitionOptions
	var status string
	var progress int
	cmd := &cobra.Command{
		Use:   "transition <reference-id>",
		Short: "Move a request to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseStatus(status)
			if err != nil {
				return err
			}
			opts.ReferenceID = args[0]
			opts.To = to
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("progress") {
				opts.Progress = &progress
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				r, err := rt.Engine.Transition(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				fmt.Printf("%s is now %s (%d%%)\n", r.ReferenceID, domain.StatusLabel(r.Status), r.Progress)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "target status")
	f.IntVar(&progress, "progress", 0, "progress percentage (defaults per status)")
	f.StringVar(&opts.Description, "description", "", "timeline description")
	f.StringVar(&opts.By, "by", "", "who made the change, shown to the citizen")
	f.StringVar(&opts.AssignedTo, "assign", "", "assign to officer or department")
	f.StringVar(&opts.Notes, "notes", "", "internal notes")
	f.StringVar(&opts.EstimatedCompletion, "eta", "", "estimated completion (RFC 3339)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func requestDocumentCmd() *cobra.Command {
	var opts engine.DocumentOptions
	cmd := &cobra.Command{
		Use:   "document <reference-id> <file>",
		Short: "Attach a staff document to a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := attachmentFromFile(args[1])
			if err != nil {
				return err
			}
			opts.ReferenceID = args[0]
			opts.Name = in.Name
			opts.Size = in.Size
			opts.ActorID = viper.GetString("actor-id")
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				_, doc, err := rt.Engine.AddDocument(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndented(doc)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Kind, "kind", domain.AttachmentResponse, "document kind (response, additional)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "MIME type")
	return cmd
}

func requestStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Request counts by status, category and priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				st, err := rt.Engine.Stats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Println("Total requests:", st.Total)
				for _, group := range []struct {
					name   string
					counts map[string]int
				}{{"Status", st.ByStatus}, {"Category", st.ByCategory}, {"Priority", st.ByPriority}} {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{group.name, "Count"})
					keys := make([]string, 0, len(group.counts))
					for k := range group.counts {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						tw.AppendRow(table.Row{k, group.counts[k]})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
}

func contactCmd() *cobra.Command {
	c := &cobra.Command{Use: "contact", Short: "Contact form messages"}

	var in domain.ContactCandidate
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Record a contact message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				msg, err := rt.Engine.SubmitContact(ctx, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndented(msg)
			})
		},
	}
	submit.Flags().StringVar(&in.Name, "name", "", "sender name")
	submit.Flags().StringVar(&in.Email, "email", "", "sender email")
	submit.Flags().StringVar(&in.Phone, "phone", "", "sender phone")
	submit.Flags().StringVar(&in.Subject, "subject", "", "subject")
	submit.Flags().StringVar(&in.Category, "category", "", "topic")
	submit.Flags().StringVar(&in.Message, "message", "", "message body")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List contact messages newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.Engine.ListContacts(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Received", "Name", "Email", "Subject"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.SubmittedAt, m.Name, m.Email, m.Subject})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "number of messages")

	c.AddCommand(submit, list)
	return c
}
