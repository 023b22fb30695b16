package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/client"
	"github.com/spf13/cobra"
)

func newPendingCommand(a *app) *cobra.Command {
	var filter struct {
		actor, operation, targetType, project string
	}
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending changes of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.requireWorkspace()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			records, err := a.client.ListPending(ctx, ws, ports.PendingFilter{
				Actor:      valueobjects.Actor(filter.actor),
				Operation:  valueobjects.Operation(filter.operation),
				TargetType: valueobjects.TargetType(filter.targetType),
				ProjectID:  filter.project,
			})
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				return a.printJSON(records)
			}
			return printRecords(a.out, records)
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.actor, "actor", "", "Only changes from this actor")
	f.StringVar(&filter.operation, "operation", "", "Only this operation")
	f.StringVar(&filter.targetType, "target-type", "", "node or edge")
	f.StringVar(&filter.project, "project", "", "Only changes inside this project")
	return cmd
}

func newProposeCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Append a change draft read from a JSON file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				fh, err := os.Open(file)
				if err != nil {
					return codeError(3, "open draft: %s", err)
				}
				defer fh.Close()
				r = fh
			}
			var draft entities.ChangeDraft
			if err := json.NewDecoder(r).Decode(&draft); err != nil {
				return codeError(3, "decode draft: %s", err)
			}
			if draft.WorkspaceID == "" {
				draft.WorkspaceID = a.flags.workspace
			}

			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			rec, err := a.client.Propose(ctx, draft)
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				return a.printJSON(rec)
			}
			fmt.Fprintf(a.out, "proposed %s (version %d)\n", rec.ID, rec.Version)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Draft JSON file, - for stdin")
	return cmd
}

func newResolveCommand(a *app) *cobra.Command {
	var approve, reject bool
	var reason string
	cmd := &cobra.Command{
		Use:   "resolve <change-id>...",
		Short: "Approve or reject pending changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.requireWorkspace()
			if err != nil {
				return err
			}
			if approve == reject {
				return codeError(3, "pass exactly one of --approve or --reject")
			}
			decision := valueobjects.DecisionApprove
			if reject {
				decision = valueobjects.DecisionReject
			}

			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			summary, err := a.client.Resolve(ctx, ws, args, decision, reason)
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				if err := a.printJSON(summary); err != nil {
					return err
				}
			} else {
				printSummary(a.out, summary)
			}
			if len(summary.Failed) > 0 {
				return codeError(2, "%d of %d changes failed", len(summary.Failed), len(args))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&approve, "approve", false, "Approve the changes")
	f.BoolVar(&reject, "reject", false, "Reject the changes")
	f.StringVar(&reason, "reason", "", "Reason recorded on the changes")
	return cmd
}

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	var cursor int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Page through the change log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.requireWorkspace()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			history, err := a.client.History(ctx, ws, limit, cursor)
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				return a.printJSON(history)
			}
			fmt.Fprintf(a.out, "snapshot version %d, log version %d\n", history.CurrentVersion, history.LogVersion)
			if err := printRecords(a.out, history.Entries); err != nil {
				return err
			}
			if history.NextCursor > 0 {
				fmt.Fprintf(a.out, "more: --cursor %d\n", history.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size, 0 for the server default")
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "Cursor from a previous page")
	return cmd
}

func newUndoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <change-id>",
		Short: "Reverse an applied change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			inv, err := a.client.Undo(ctx, args[0])
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				return a.printJSON(inv)
			}
			fmt.Fprintf(a.out, "undone %s by %s (%s, version %d)\n", args[0], inv.ID, inv.Operation, inv.Version)
			return nil
		},
	}
}

func newGraphCommand(a *app) *cobra.Command {
	var includeProposed bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the projected graph with positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.requireWorkspace()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()
			view, err := a.client.Graph(ctx, ws, includeProposed)
			if err != nil {
				return a.fail(err)
			}
			if a.flags.output == "json" {
				return a.printJSON(view)
			}
			return printGraph(a.out, view)
		},
	}
	cmd.Flags().BoolVar(&includeProposed, "include-proposed", false, "Show pending creates as ghosts")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	cfg := client.SyncConfigFor(domainconfig.LoadDomainConfig(os.Getenv("ENVIRONMENT")).Refresh)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a workspace; SIGHUP forces a refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := a.requireWorkspace()
			if err != nil {
				return err
			}
			cfg.RequestTimeout = a.flags.timeout
			syncer := client.NewSynchronizer(a.client, cfg, a.logger)
			defer syncer.Close()

			syncer.OnUpdate(func(v client.View) {
				if a.flags.output == "json" {
					_ = a.printJSON(v.Graph)
					return
				}
				fmt.Fprintf(a.out, "%s  %s v%d  nodes=%d edges=%d pending=%d\n",
					v.FetchedAt.Format(time.TimeOnly), v.WorkspaceID, v.Graph.Version,
					len(v.Graph.Nodes), len(v.Graph.Edges), len(v.Pending))
			})
			syncer.OnError(func(workspaceID string, err error) {
				fmt.Fprintf(cmd.ErrOrStderr(), "refresh of %s failed: %v\n", workspaceID, err)
			})

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(signals)

			syncer.SetWorkspace(ws)
			syncer.Start()
			for {
				select {
				case sig := <-signals:
					if sig == syscall.SIGHUP {
						syncer.Notify()
						continue
					}
					return nil
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
	f := cmd.Flags()
	f.DurationVar(&cfg.Debounce, "debounce", cfg.Debounce, "Quiet period before a notified refresh")
	f.DurationVar(&cfg.Fallback, "interval", cfg.Fallback, "Fallback refresh interval")
	f.BoolVar(&cfg.IncludeProposed, "include-proposed", cfg.IncludeProposed, "Include ghost proposals")
	return cmd
}

func printRecords(w io.Writer, records []*entities.ChangeRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tID\tOPERATION\tTARGET\tACTOR\tSTATUS\tLABEL")
	for _, r := range records {
		label := ""
		if r.AfterState != nil {
			label = r.AfterState.Label
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s:%s\t%s\t%s\t%s\n",
			r.Version, r.ID, r.Operation, r.TargetType, r.TargetID, r.Actor, r.Status, label)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s *services.Summary) {
	if len(s.Applied) > 0 {
		fmt.Fprintf(w, "applied:  %s\n", strings.Join(s.Applied, ", "))
	}
	if len(s.Rejected) > 0 {
		fmt.Fprintf(w, "rejected: %s\n", strings.Join(s.Rejected, ", "))
	}
	for _, f := range s.Failed {
		fmt.Fprintf(w, "failed:   %s  %s\n", f.ID, f.Reason)
	}
}

func printGraph(w io.Writer, v *projections.GraphView) error {
	fmt.Fprintf(w, "workspace %s at version %d, %d pending\n", v.WorkspaceID, v.Version, v.PendingCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tTYPE\tPROJECT\tLEVEL\tX\tY\tFLAGS\tLABEL")
	for _, n := range v.Nodes {
		var flags []string
		if n.Ghost {
			flags = append(flags, "ghost")
		} else if n.Pending {
			flags = append(flags, "pending")
		}
		if n.Pinned {
			flags = append(flags, "pinned")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.0f\t%.0f\t%s\t%s\n",
			n.ID, n.Type, n.ProjectID, n.Level, n.Position.X(), n.Position.Y(), strings.Join(flags, ","), n.Label)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, e := range v.Edges {
		marker := ""
		if e.Ghost {
			marker = " (proposed)"
		}
		fmt.Fprintf(w, "%s -> %s [%s]%s\n", e.SourceID, e.TargetID, e.Type, marker)
	}
	return nil
}
