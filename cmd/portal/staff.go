package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"citizenportal/internal/app"
	"citizenportal/internal/domain"
	"citizenportal/internal/repo"
	"citizenportal/internal/staff"
)

func staffCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
		Long:  "Staff accounts sign in to the back-office API. Roles: admin (everything), officer (requests and contacts), viewer (read only).",
	}
	s.AddCommand(staffCreateCmd())
	s.AddCommand(staffListCmd())
	s.AddCommand(staffRoleCmd())
	s.AddCommand(staffLoginCmd())
	s.AddCommand(staffAPIKeyCmd())
	return s
}

func staffCreateCmd() *cobra.Command {
	var opts staff.CreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				opts.Password = os.Getenv("PORTAL_STAFF_PASSWORD")
			}
			opts.ActorID = viper.GetString("actor-id")
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, err := rt.Staff.Create(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndented(u)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "login email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (or PORTAL_STAFF_PASSWORD)")
	cmd.Flags().StringVar(&opts.Role, "role", domain.RoleOfficer, "role (admin, officer, viewer)")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func staffListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staff accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				users, err := rt.Staff.Repo.ListStaff(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Role", "Department", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Role, u.Department, u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func staffRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Change a staff member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, err := rt.Staff.Repo.GetStaffByEmail(ctx, args[0])
				if err != nil {
					return err
				}
				if err := rt.Staff.SetRole(ctx, u.ID, args[1], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("%s is now %s\n", u.Email, args[1])
				return nil
			})
		},
	}
}

func staffLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Issue a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PORTAL_STAFF_PASSWORD")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				sess, err := rt.Staff.Login(ctx, email, password)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sess)
				}
				fmt.Println(sess.Token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (or PORTAL_STAFF_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func staffAPIKeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage staff API keys"}

	var name string
	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an API key; the key is shown once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, err := rt.Staff.Repo.GetStaffByEmail(ctx, args[0])
				if err != nil {
					return err
				}
				plain, key, err := rt.Staff.CreateAPIKey(ctx, u.ID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": plain, "apiKey": key})
				}
				fmt.Println(plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")

	list := &cobra.Command{
		Use:   "list <email>",
		Short: "List API keys for a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, err := rt.Staff.Repo.GetStaffByEmail(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := rt.Staff.Repo.ListAPIKeys(ctx, u.ID)
				if err != nil {
					return err
				}
				return printJSONOrIndented(items)
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Staff.Repo.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}

	keys.AddCommand(create, list, revoke)
	return keys
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every submission, status change, document, contact message and staff change is recorded here.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				events, err := rt.Engine.Repo.LatestEvents(ctx, n, 0, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{strconv.FormatInt(e.ID, 10), e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id filter")
	return cmd
}
