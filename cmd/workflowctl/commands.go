package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

type transitionKind struct {
	use   string
	short string
	apply func(ctx context.Context, app *cli, tx entity.StateTransaction) error
}

var (
	transitionComplete = transitionKind{
		use:   "complete",
		short: "Complete the current state and advance the item",
		apply: func(ctx context.Context, app *cli, tx entity.StateTransaction) error {
			return app.container.WorkflowEngine().CompleteState(ctx, tx)
		},
	}
	transitionDiscard = transitionKind{
		use:   "discard",
		short: "Discard the current state and send the item back",
		apply: func(ctx context.Context, app *cli, tx entity.StateTransaction) error {
			return app.container.WorkflowEngine().DiscardState(ctx, tx)
		},
	}
	transitionApprove = transitionKind{
		use:   "approve",
		short: "Force-complete the workflow without reviewer checks",
		apply: func(ctx context.Context, app *cli, tx entity.StateTransaction) error {
			return app.container.WorkflowEngine().CompleteWorkflow(ctx, tx)
		},
	}
	transitionReject = transitionKind{
		use:   "reject",
		short: "Force-discard the workflow without reviewer checks",
		apply: func(ctx context.Context, app *cli, tx entity.StateTransaction) error {
			return app.container.WorkflowEngine().DiscardWorkflow(ctx, tx)
		},
	}
)

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content item id %q", arg)
	}
	return id, nil
}

func newCreateCmd(app *cli) *cobra.Command {
	var req service.CreateContentRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an unmanaged content item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := app.container.Services().Content.CreateItem(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "item title")
	cmd.Flags().Int64Var(&req.ContentTypeID, "type", 0, "content type id")
	cmd.Flags().Int64Var(&req.UserID, "user", 0, "creating user id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newStartCmd(app *cli) *cobra.Command {
	var workflowID, userID int64
	cmd := &cobra.Command{
		Use:   "start <item-id>",
		Short: "Start a workflow on a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			engine := app.container.WorkflowEngine()
			if err := engine.StartWorkflow(cmd.Context(), workflowID, itemID, userID); err != nil {
				return err
			}
			status, err := engine.GetStatus(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().Int64Var(&workflowID, "workflow", 0, "workflow id")
	cmd.Flags().Int64Var(&userID, "user", 0, "acting user id")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTransitionCmd(app *cli, kind transitionKind) *cobra.Command {
	var tx entity.StateTransaction
	cmd := &cobra.Command{
		Use:   kind.use + " <item-id>",
		Short: kind.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			tx.ContentItemID = itemID
			if err := kind.apply(cmd.Context(), app, tx); err != nil {
				return err
			}
			status, err := app.container.WorkflowEngine().GetStatus(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().Int64Var(&tx.CurrentStateID, "state", 0, "state the item is expected to be in")
	cmd.Flags().Int64Var(&tx.UserID, "user", 0, "acting user id")
	cmd.Flags().StringVar(&tx.Message.Subject, "subject", "", "notification subject")
	cmd.Flags().StringVar(&tx.Message.Body, "body", "", "notification body, [COMMENT] marks where the comment goes")
	cmd.Flags().StringVar(&tx.Message.UserComment, "comment", "", "comment recorded in the audit log")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatusCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <item-id>",
		Short: "Show where an item stands in its workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			status, err := app.container.WorkflowEngine().GetStatus(cmd.Context(), itemID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newLogsCmd(app *cli) *cobra.Command {
	var workflowID int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "logs <item-id>",
		Short: "Print the audit log of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			history, err := app.container.Services().History.GetHistory(cmd.Context(), itemID, workflowID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), history)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tACTION\tUSER\tCOMMENT")
			for _, e := range history.Entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Date.UTC().Format(time.RFC3339), e.Action, e.UserName, e.Comment)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&workflowID, "workflow", entity.NullID, "workflow id, defaults to the current workflow")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newExportCmd(app *cli) *cobra.Command {
	var workflowID int64
	var out string
	cmd := &cobra.Command{
		Use:   "export <item-id>",
		Short: "Export the audit log of an item to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := app.container.Services().Export.ExportHistory(cmd.Context(), itemID, workflowID, &buf); err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("item-%d-audit.xlsx", itemID)
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Int64Var(&workflowID, "workflow", entity.NullID, "workflow id, defaults to the current workflow")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func newRelayCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Push pending notifications to Lark once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			relay := app.container.RelayWorker()
			if relay == nil {
				return fmt.Errorf("lark is not enabled")
			}
			n, err := relay.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "delivered %d notifications\n", n)
			return nil
		},
	}
}

func newMigrationsCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrations",
		Short: "List schema migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := app.container.SchemaStatus(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
			for _, st := range statuses {
				applied := "pending"
				if st.AppliedAt != nil {
					applied = st.AppliedAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%03d\t%s\t%s\n", st.Version, st.Name, applied)
			}
			return w.Flush()
		},
	}
}
