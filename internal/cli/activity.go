package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var activitySource string

func init() {
	cmd := &cobra.Command{
		Use:   "activity [slug]",
		Short: "Report an observed solve signal to the daemon",
		Args:  cobra.MaximumNArgs(1),
		Run:   runActivity,
	}
	cmd.Flags().StringVar(&activitySource, "source", "cli", "Signal source label")
	RootCmd.AddCommand(cmd)
}

func runActivity(cmd *cobra.Command, args []string) {
	payload := map[string]any{"source": activitySource}
	if len(args) == 1 {
		payload["slug"] = args[0]
	}
	snapshot, err := callAPI("POST", "/v1/activity", payload)
	if err != nil {
		exitErr("record activity", err)
	}
	fmt.Printf("%d/%d solved today\n", asInt(snapshot["solvesToday"]), asInt(snapshot["dailyGoal"]))
}
