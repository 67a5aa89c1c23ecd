package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	settingsUsername string
	settingsGoal     int
	settingsDaily    bool
	settingsNotify   bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Configure the tracked account and daily goal",
		Run:   runSettings,
	}
	cmd.Flags().StringVarP(&settingsUsername, "username", "u", "", "Account username to track")
	cmd.Flags().IntVarP(&settingsGoal, "goal", "g", 1, "Required solves per day (1-30)")
	cmd.Flags().BoolVar(&settingsDaily, "require-daily", false, "Require the official daily challenge")
	cmd.Flags().BoolVar(&settingsNotify, "notify", true, "Log a notice when the goal is met")
	_ = cmd.MarkFlagRequired("username")
	RootCmd.AddCommand(cmd)
}

func runSettings(cmd *cobra.Command, args []string) {
	snapshot, err := callAPI("POST", "/v1/settings", map[string]any{
		"username":         settingsUsername,
		"dailyGoal":        settingsGoal,
		"requireDaily":     settingsDaily,
		"notifyOnComplete": settingsNotify,
	})
	if err != nil {
		exitErr("apply settings", err)
	}
	fmt.Printf("tracking %s, goal %d/day\n", snapshot["username"], asInt(snapshot["dailyGoal"]))
}
