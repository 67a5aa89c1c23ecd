package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkFocused bool

func init() {
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Evaluate a URL against the blocking policy",
		Args:  cobra.ExactArgs(1),
		Run:   runCheck,
	}
	cmd.Flags().BoolVar(&checkFocused, "focused", false, "Treat the URL as the focused tab (records side effects)")
	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	decision, err := callAPI("POST", "/v1/policy/evaluate", map[string]any{
		"url":     args[0],
		"focused": checkFocused,
	})
	if err != nil {
		exitErr("evaluate", err)
	}
	action, _ := decision["action"].(string)
	reason, _ := decision["reason"].(string)
	fmt.Printf("%s (%s)\n", action, reason)
}
