package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ask the daemon to verify progress against the remote service now",
		Run:   runSync,
	}
	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	result, err := callAPI("POST", "/v1/sync", nil)
	if err != nil {
		exitErr("sync", err)
	}
	if success, _ := result["success"].(bool); !success {
		reason, _ := result["reason"].(string)
		fmt.Printf("sync skipped: %s\n", reason)
		return
	}
	fmt.Println("synced")
	if snapshot, ok := result["snapshot"].(map[string]any); ok {
		fmt.Printf("%d/%d solved today\n", asInt(snapshot["solvesToday"]), asInt(snapshot["dailyGoal"]))
	}
}
