package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Manage tickets",
}

var ticketAddCmd = &cobra.Command{
	Use:   "add [project-id]",
	Short: "Create a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketAdd,
}

var ticketShowCmd = &cobra.Command{
	Use:   "show [ticket-id]",
	Short: "Show ticket details and tracked time",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketShow,
}

var ticketUpdateCmd = &cobra.Command{
	Use:   "update [ticket-id]",
	Short: "Update ticket fields",
	Long:  "Update ticket fields. Only flags that are set are sent; pass --assignee \"\" to unassign.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketUpdate,
}

var ticketMoveCmd = &cobra.Command{
	Use:   "move [ticket-id] [status]",
	Short: "Move a ticket to another column",
	Args:  cobra.ExactArgs(2),
	RunE:  runTicketMove,
}

var ticketDeleteCmd = &cobra.Command{
	Use:   "delete [ticket-id]",
	Short: "Delete a ticket and its time logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketDelete,
}

var ticketBoardCmd = &cobra.Command{
	Use:   "board [project-id]",
	Short: "Print a project's board",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketBoard,
}

var (
	ticketTitle    string
	ticketDesc     string
	ticketStatus   string
	ticketPriority string
	ticketType     string
	ticketAssignee string
	ticketDeadline string
	ticketEstimate int
)

func init() {
	ticketCmd.AddCommand(ticketAddCmd, ticketShowCmd, ticketUpdateCmd, ticketMoveCmd, ticketDeleteCmd, ticketBoardCmd)

	for _, c := range []*cobra.Command{ticketAddCmd, ticketUpdateCmd} {
		c.Flags().StringVar(&ticketTitle, "title", "", "Ticket title")
		c.Flags().StringVar(&ticketDesc, "desc", "", "Ticket description")
		c.Flags().StringVar(&ticketStatus, "status", "", "Status (backlog, todo, in_progress, done, tested, completed)")
		c.Flags().StringVar(&ticketPriority, "priority", "", "Priority (low, medium, high)")
		c.Flags().StringVar(&ticketType, "type", "", "Type (bug, feature, improvement)")
		c.Flags().StringVar(&ticketAssignee, "assignee", "", "Assignee user id")
		c.Flags().StringVar(&ticketDeadline, "deadline", "", "Deadline (YYYY-MM-DD)")
		c.Flags().IntVar(&ticketEstimate, "estimate", 0, "Estimate in points")
	}
	ticketAddCmd.MarkFlagRequired("title")
}

func runTicketAdd(cmd *cobra.Command, args []string) error {
	typ := ticketType
	if typ == "" {
		typ = string(models.TypeFeature)
	}
	in := tracker.CreateTicketInput{
		Title:       ticketTitle,
		Description: ticketDesc,
		Status:      ticketStatus,
		Priority:    ticketPriority,
		Type:        typ,
		AssigneeID:  ticketAssignee,
		Deadline:    ticketDeadline,
	}
	if cmd.Flags().Changed("estimate") {
		est := ticketEstimate
		in.Estimate = &est
	}

	resp, err := apiPost("/projects/"+args[0]+"/tickets", in)
	if err != nil {
		return err
	}

	var t models.Ticket
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}
	fmt.Printf("Created ticket: %s (%s)\n", t.ID, t.Status)
	return nil
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tickets/" + args[0])
	if err != nil {
		return err
	}
	var t models.Ticket
	if err := json.Unmarshal(resp, &t); err != nil {
		return err
	}

	resp, err = apiGet("/tickets/" + args[0] + "/time")
	if err != nil {
		return err
	}
	var tt tracker.TicketTime
	if err := json.Unmarshal(resp, &tt); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", t.ID)
	fmt.Printf("Title:       %s\n", t.Title)
	fmt.Printf("Status:      %s\n", t.Status)
	fmt.Printf("Priority:    %s\n", t.Priority)
	fmt.Printf("Type:        %s\n", t.Type.Label())
	if t.AssigneeID != "" {
		fmt.Printf("Assignee:    %s\n", t.AssigneeID)
	}
	if t.Deadline != nil {
		fmt.Printf("Deadline:    %s\n", formatDate(t.Deadline))
	}
	if t.Estimate != nil {
		fmt.Printf("Estimate:    %d\n", *t.Estimate)
	}
	fmt.Printf("Created:     %s by %s\n", formatAgo(t.CreatedAt), t.CreatedBy)
	if t.StartedAt != nil {
		fmt.Printf("Started:     %s\n", formatAgo(*t.StartedAt))
	}
	if t.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", formatAgo(*t.CompletedAt))
	}
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}

	fmt.Printf("\nTracked:     %s\n", formatSeconds(tt.TotalSeconds))
	if len(tt.Logs) == 0 {
		return nil
	}
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOG\tUSER\tSTARTED\tDURATION")
	for _, l := range tt.Logs {
		dur := formatSeconds(l.Seconds(tt.At))
		if l.IsRunning() {
			dur += " (running)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.UserID, formatAgo(l.StartedAt), dur)
	}
	return w.Flush()
}

func runTicketUpdate(cmd *cobra.Command, args []string) error {
	var in tracker.UpdateTicketInput
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = &ticketTitle
	}
	if flags.Changed("desc") {
		in.Description = &ticketDesc
	}
	if flags.Changed("status") {
		in.Status = &ticketStatus
	}
	if flags.Changed("priority") {
		in.Priority = &ticketPriority
	}
	if flags.Changed("type") {
		in.Type = &ticketType
	}
	if flags.Changed("assignee") {
		in.AssigneeID = &ticketAssignee
	}
	if flags.Changed("deadline") {
		in.Deadline = &ticketDeadline
	}
	if flags.Changed("estimate") {
		in.Estimate = &ticketEstimate
	}

	resp, err := apiPatch("/tickets/"+args[0], in)
	if err != nil {
		return err
	}
	return printTicketResult(resp)
}

func runTicketMove(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/tickets/"+args[0]+"/move", map[string]string{"status": args[1]})
	if err != nil {
		return err
	}
	return printTicketResult(resp)
}

func printTicketResult(resp []byte) error {
	var res tracker.TicketResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return err
	}
	if !res.Changed {
		fmt.Printf("Ticket %s unchanged\n", res.Ticket.ID)
		return nil
	}
	fmt.Printf("Updated ticket %s (%s)\n", res.Ticket.ID, res.Ticket.Status)
	for _, l := range res.StoppedTimers {
		fmt.Printf("  stopped timer of %s after %s\n", l.UserID, formatSeconds(l.Seconds(res.Ticket.UpdatedAt)))
	}
	return nil
}

func runTicketDelete(cmd *cobra.Command, args []string) error {
	if err := apiDelete("/tickets/" + args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted ticket %s\n", args[0])
	return nil
}

func runTicketBoard(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/board")
	if err != nil {
		return err
	}

	var b tracker.Board
	if err := json.Unmarshal(resp, &b); err != nil {
		return err
	}

	fmt.Printf("%s\n\n", b.Project.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tID\tTITLE\tPRIORITY\tASSIGNEE\tTRACKED\t")
	for _, col := range b.Columns {
		if len(col.Tickets) == 0 {
			fmt.Fprintf(w, "%s\t-\t\t\t\t\t\n", col.Status)
			continue
		}
		for _, t := range col.Tickets {
			title := truncate(t.Title, 40)
			if t.Overdue {
				title += " (overdue)"
			}
			assignee := t.AssigneeID
			if assignee == "" {
				assignee = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", col.Status, t.ID, title, t.Priority, assignee, formatSeconds(t.TrackedSeconds))
		}
	}
	return w.Flush()
}
