package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's progress and goal state",
		Run:   runStatus,
	}
	cmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw state snapshot")
	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	state, err := callAPI("GET", "/v1/state", nil)
	if err != nil {
		exitErr("fetch state", err)
	}
	if statusJSON {
		printJSON(state)
		return
	}

	username, _ := state["username"].(string)
	if username == "" {
		fmt.Println("no account configured; run `solvegatectl settings --username <name>`")
		return
	}

	solves := asInt(state["solvesToday"])
	goal := asInt(state["dailyGoal"])
	fmt.Printf("%s: %d/%d solved today", username, solves, goal)
	if met, _ := state["goalMet"].(bool); met {
		fmt.Print("  (goal met)")
	}
	fmt.Println()

	if streak := asInt(state["currentStreak"]); streak > 0 {
		fmt.Printf("streak: %d day(s), best %d\n", streak, asInt(state["longestStreak"]))
	}
	if title, _ := state["dailyTitle"].(string); title != "" {
		marker := " "
		if solved, _ := state["dailySolved"].(bool); solved {
			marker = "x"
		}
		fmt.Printf("daily challenge: [%s] %s\n", marker, title)
	}
	if active, _ := state["bypassActive"].(bool); active {
		fmt.Printf("bypass active until %v\n", state["bypassExpiresAt"])
	}
	if loggedIn, ok := state["loggedIn"].(bool); ok && !loggedIn {
		fmt.Println("warning: sign-in required, remote sync is failing")
	}
}

func asInt(value any) int {
	number, _ := value.(float64)
	return int(number)
}
