package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/validus/config"
	"github.com/teranos/validus/ledger"
)

var runsFlags struct {
	limit  int
	status string
	span   int64
}

// RunsCmd inspects recorded validation run history
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded validation run history",
	Long: `List validation runs recorded in the ledger, newest first.

Examples:
  validus runs                     # Last 20 runs
  validus runs --status failed     # Only failed runs
  validus runs --span 11           # All runs for span 11`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := ledger.Open(cfg.GetLedgerPath())
		if err != nil {
			return err
		}
		defer store.Close()

		var runs []*ledger.Run
		if cmd.Flags().Changed("span") {
			runs, err = store.ListRunsBySpan(runsFlags.span)
		} else {
			runs, err = store.ListRuns(runsFlags.status, runsFlags.limit)
		}
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			pterm.Info.Println("No runs recorded")
			return nil
		}

		rows := pterm.TableData{{"Run", "Span", "Splits", "Blessed", "Alerts", "Status", "Started"}}
		for _, run := range runs {
			blessed := "no"
			if run.Blessed() {
				blessed = "yes"
			}
			rows = append(rows, []string{
				shortID(run.ID),
				strconv.FormatInt(run.Span, 10),
				strconv.Itoa(len(run.Splits)),
				blessed,
				strconv.Itoa(run.AlertCount),
				run.Status,
				run.StartedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
	SilenceUsage: true,
}

// shortID abbreviates a run ID for table display. IDs shorter than
// eight characters are shown as-is.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	f := RunsCmd.Flags()
	f.IntVar(&runsFlags.limit, "limit", 20, "Maximum runs to list")
	f.StringVar(&runsFlags.status, "status", "", "Filter by status (succeeded, failed)")
	f.Int64Var(&runsFlags.span, "span", 0, "List all runs for one span")
}
