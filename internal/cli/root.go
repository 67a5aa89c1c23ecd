// Package cli implements the solvegatectl commands. Every command talks to a
// running daemon over its local HTTP API.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	daemonAddr string
	apiToken   string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "solvegatectl",
	Short: "Control a running solvegate daemon",
	Long:  "Inspect and drive the solvegate goal daemon: check state, trigger syncs, record solves, and spend the daily bypass.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&daemonAddr, "addr", "a", "", "Daemon address (default: $SOLVEGATE_ADDR or 127.0.0.1:7433)")
	RootCmd.PersistentFlags().StringVarP(&apiToken, "token", "t", "", "API token (default: $SOLVEGATE_API_TOKEN)")
}

func baseURL() string {
	addr := strings.TrimSpace(daemonAddr)
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("SOLVEGATE_ADDR"))
	}
	if addr == "" {
		addr = "127.0.0.1:7433"
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

func token() string {
	if apiToken != "" {
		return apiToken
	}
	return os.Getenv("SOLVEGATE_API_TOKEN")
}

// callAPI performs one request against the daemon and decodes the JSON reply
// into a generic map for printing.
func callAPI(method, path string, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, baseURL()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: 45 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		message, _ := decoded["message"].(string)
		if message == "" {
			message = resp.Status
		}
		return decoded, fmt.Errorf("%s", message)
	}
	return decoded, nil
}

func printJSON(value any) {
	encoded, _ := json.MarshalIndent(value, "", "  ")
	fmt.Println(string(encoded))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
