package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/health"
	"github.com/kaneboard/kaneboard/internal/models"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project owned by the current user",
	RunE:  runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	RunE:  runProjectList,
}

var projectMemberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage project members",
}

var projectMemberAddCmd = &cobra.Command{
	Use:   "add [project-id] [user-id]",
	Short: "Add a member to a project you own",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectMemberAdd,
}

var projectHealthCmd = &cobra.Command{
	Use:   "health [project-id]",
	Short: "Show schedule health and forecast",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectHealth,
}

var projectTimeCmd = &cobra.Command{
	Use:   "time [project-id]",
	Short: "Show tracked time per user",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectTime,
}

var projectActivityCmd = &cobra.Command{
	Use:   "activity [project-id]",
	Short: "Show recent ticket activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectActivity,
}

var (
	projectName   string
	projectStart  string
	projectEnd    string
	baselineStart string
	baselineEnd   string
	activityLimit int
)

func init() {
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectMemberCmd, projectHealthCmd, projectTimeCmd, projectActivityCmd)
	projectMemberCmd.AddCommand(projectMemberAddCmd)

	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "Project name (required)")
	projectCreateCmd.Flags().StringVar(&projectStart, "start", "", "Start date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&projectEnd, "end", "", "End date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&baselineStart, "baseline-start", "", "Baseline start date (YYYY-MM-DD)")
	projectCreateCmd.Flags().StringVar(&baselineEnd, "baseline-end", "", "Baseline end date (YYYY-MM-DD)")
	projectCreateCmd.MarkFlagRequired("name")

	projectActivityCmd.Flags().IntVar(&activityLimit, "limit", 20, "Number of events to show")
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	resp, err := apiPost("/projects", tracker.CreateProjectInput{
		Name:              projectName,
		StartDate:         projectStart,
		EndDate:           projectEnd,
		BaselineStartDate: baselineStart,
		BaselineEndDate:   baselineEnd,
	})
	if err != nil {
		return err
	}

	var p models.Project
	if err := json.Unmarshal(resp, &p); err != nil {
		return err
	}
	fmt.Printf("Created project: %s (%s)\n", p.ID, p.Name)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects")
	if err != nil {
		return err
	}

	var projects []models.Project
	if err := json.Unmarshal(resp, &projects); err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOWNER\tSTART\tEND")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, truncate(p.Name, 40), p.OwnerID, formatDate(p.StartDate), formatDate(p.EndDate))
	}
	return w.Flush()
}

func runProjectMemberAdd(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/projects/"+args[0]+"/members", map[string]string{"user_id": args[1]}); err != nil {
		return err
	}
	fmt.Printf("Added %s to project %s\n", args[1], args[0])
	return nil
}

func runProjectHealth(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/health")
	if err != nil {
		return err
	}

	var r health.Report
	if err := json.Unmarshal(resp, &r); err != nil {
		return err
	}

	fmt.Printf("Status:     %s\n", r.Status)
	if r.Message != "" {
		fmt.Printf("Message:    %s\n", r.Message)
		return nil
	}
	fmt.Printf("Schedule:   %s → %s\n", r.StartDate, r.EndDate)
	fmt.Printf("Progress:   %s actual / %s expected\n", formatPercent(r.ActualProgress), formatPercent(r.ExpectedProgress))
	fmt.Printf("Tickets:    %d total, %d done, %d open, %d overdue, %d due soon\n",
		r.Tickets.Total, r.Tickets.Done, r.Tickets.Open, r.Tickets.Overdue, r.Tickets.DueSoon)
	fmt.Printf("Throughput: %.2f tickets/day\n", r.ThroughputPerDay)
	if r.ForecastEnd != "" {
		conf := "-"
		if r.Confidence != nil {
			conf = fmt.Sprintf("%d%%", *r.Confidence)
		}
		fmt.Printf("Forecast:   %s (confidence %s)\n", r.ForecastEnd, conf)
	}
	if r.ScopeCreepPct > 0 {
		fmt.Printf("Scope:      %d%% added since baseline\n", r.ScopeCreepPct)
	}
	if len(r.RiskSignals) > 0 {
		fmt.Println("\nRisk signals:")
		for _, s := range r.RiskSignals {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}

func runProjectTime(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/time")
	if err != nil {
		return err
	}

	var pt tracker.ProjectTime
	if err := json.Unmarshal(resp, &pt); err != nil {
		return err
	}

	fmt.Printf("Total: %s\n\n", formatSeconds(pt.TotalSeconds))
	if len(pt.ByUser) == 0 {
		fmt.Println("No time tracked yet")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tTIME")
	for _, u := range pt.ByUser {
		fmt.Fprintf(w, "%s\t%s\n", u.UserID, formatSeconds(u.Seconds))
	}
	return w.Flush()
}

func runProjectActivity(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(activityLimit))
	resp, err := apiGet("/projects/" + args[0] + "/activity?" + q.Encode())
	if err != nil {
		return err
	}

	var events []models.Event
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No activity yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tWHO\tACTION\tMESSAGE")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatAgo(ev.CreatedAt), ev.ActorID, strings.ToUpper(string(ev.Action)), truncate(ev.Message, 60))
	}
	return w.Flush()
}
