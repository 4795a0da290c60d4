package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cschleiden/go-approvals/api"
	"github.com/cschleiden/go-approvals/client"
	"github.com/cschleiden/go-approvals/core"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	addr string
	out  io.Writer
}

func (g *globals) client() *client.Client {
	return client.New(g.addr)
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globals{out: out}

	root := &cobra.Command{
		Use:           "approvalsctl",
		Short:         "Submit tasks and decide approvals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.addr, "addr", envOr("APPROVALS_ADDR", "http://localhost:8000"), "server address")

	root.AddCommand(
		healthCmd(g),
		createCmd(g),
		listCmd(g),
		pendingCmd(g),
		getCmd(g),
		decideCmd(g, "approve", true),
		decideCmd(g, "reject", false),
	)

	return root
}

func healthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := g.client().Health(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "%s (approval timeout %ds)\n", h.Status, h.ApprovalTimeoutSeconds)
			return nil
		},
	}
}

func createCmd(g *globals) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "create MESSAGE",
		Short: "Submit a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()

			r, err := c.CreateTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "task %s: %s\n%s\n", r.TaskID, r.Status, r.Message)

			if wait <= 0 || r.Status != core.TaskStatusWaitingApproval {
				return nil
			}

			t, err := c.WaitForStatus(cmd.Context(), r.TaskID, wait, terminalStatuses()...)
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "task %s: %s\n", t.TaskID, t.Status)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for a task awaiting approval to finish")

	return cmd
}

func listCmd(g *globals) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := g.client().ListTasks(cmd.Context(), core.TaskStatus(status), limit)
			if err != nil {
				return err
			}

			return printTasks(g.out, l)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list tasks in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tasks, server default if 0")

	return cmd
}

func pendingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List tasks awaiting approval, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := g.client().PendingTasks(cmd.Context())
			if err != nil {
				return err
			}

			return printTasks(g.out, l)
		},
	}
}

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get TASK_ID",
		Short: "Show a task and its workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := g.client().GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(g.out)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}

func decideCmd(g *globals, action string, approved bool) *cobra.Command {
	var comment, approver string

	cmd := &cobra.Command{
		Use:   action + " TASK_ID",
		Short: fmt.Sprintf("%s a task awaiting approval", capitalize(action)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := g.client()

			var (
				r   *api.ApprovalResponse
				err error
			)
			if approved {
				r, err = c.Approve(cmd.Context(), args[0], comment, approver)
			} else {
				r, err = c.Reject(cmd.Context(), args[0], comment, approver)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(g.out, "task %s: %s\n%s\n", r.TaskID, r.Status, r.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded with the decision")
	cmd.Flags().StringVar(&approver, "approver", envOr("USER", ""), "who made the decision")

	return cmd
}

func printTasks(out io.Writer, l *api.TaskList) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tNODE\tCREATED\tREQUEST")

	for _, t := range l.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.TaskID, t.Status, t.CurrentNode, t.CreatedAt.Format(time.RFC3339), truncate(t.UserInput, 60))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d task(s)\n", l.Total)
	return nil
}

func terminalStatuses() []core.TaskStatus {
	return []core.TaskStatus{
		core.TaskStatusCompleted,
		core.TaskStatusRejected,
		core.TaskStatusTimeout,
		core.TaskStatusFailed,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return string(s[0]-'a'+'A') + s[1:]
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return def
}
