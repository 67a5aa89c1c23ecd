package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bypass",
		Short: "Spend today's one-shot bypass to unblock browsing temporarily",
		Run:   runBypass,
	}
	RootCmd.AddCommand(cmd)
}

func runBypass(cmd *cobra.Command, args []string) {
	result, err := callAPI("POST", "/v1/bypass", nil)
	if err != nil {
		exitErr("bypass", err)
	}
	if success, _ := result["success"].(bool); !success {
		reason, _ := result["reason"].(string)
		fmt.Printf("bypass refused: %s\n", reason)
		return
	}
	fmt.Printf("bypass active until %v\n", result["expiresAt"])
}
