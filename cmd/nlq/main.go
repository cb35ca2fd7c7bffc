package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	apiKey     string
	language   string
	explain    bool
	maxResults int
	status     string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "nlq",
		Short: "CLI client for the NLQ analytics backend",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("NLQ_API_KEY"), "API key")

	// Ask a natural language question
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a natural language question",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAsk,
	}
	askCmd.Flags().StringVarP(&language, "language", "l", "en", "Question language (en, hi)")
	askCmd.Flags().BoolVar(&explain, "explain", false, "Include a plain-language explanation")
	askCmd.Flags().IntVar(&maxResults, "max-results", 0, "Row cap for this query (0 uses server default)")
	root.AddCommand(askCmd)

	// Generate SQL without executing
	genCmd := &cobra.Command{
		Use:   "generate [question]",
		Short: "Generate SQL without executing it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGenerate,
	}
	genCmd.Flags().StringVarP(&language, "language", "l", "en", "Question language (en, hi)")
	genCmd.Flags().BoolVar(&explain, "explain", false, "Include a plain-language explanation")
	root.AddCommand(genCmd)

	// Execute a raw SELECT
	execCmd := &cobra.Command{
		Use:   "exec-sql [sql]",
		Short: "Validate and execute a SELECT statement",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExecSQL,
	}
	execCmd.Flags().IntVar(&maxResults, "max-results", 0, "Row cap for this query (0 uses server default)")
	root.AddCommand(execCmd)

	// Health check
	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	})

	// Query history
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent queries",
		RunE:  runHistory,
	}
	historyCmd.Flags().StringVar(&status, "status", "", "Filter by status (completed, rejected, failed, timeout)")
	root.AddCommand(historyCmd)

	// Schema refresh
	root.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Re-embed the schema catalog",
		RunE:  runRefresh,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func readArgOrStdin(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func runAsk(_ *cobra.Command, args []string) error {
	question, err := readArgOrStdin(args)
	if err != nil {
		return err
	}
	return postJSON("/api/nlq/query", map[string]any{
		"query":    question,
		"language": language,
		"options": map[string]any{
			"includeExplanation": explain,
			"maxResults":         maxResults,
		},
	})
}

func runGenerate(_ *cobra.Command, args []string) error {
	question, err := readArgOrStdin(args)
	if err != nil {
		return err
	}
	return postJSON("/api/nlq/generate-sql", map[string]any{
		"query":    question,
		"language": language,
		"options": map[string]any{
			"includeExplanation": explain,
		},
	})
}

func runExecSQL(_ *cobra.Command, args []string) error {
	sql, err := readArgOrStdin(args)
	if err != nil {
		return err
	}
	return postJSON("/api/nlq/execute-sql", map[string]any{
		"sql": sql,
		"options": map[string]any{
			"maxResults": maxResults,
		},
	})
}

func runRefresh(_ *cobra.Command, _ []string) error {
	return postJSON("/api/nlq/schema/refresh", nil)
}

func runHealth(_ *cobra.Command, _ []string) error {
	resp, err := http.Get(serverURL + "/api/nlq/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func runHistory(_ *cobra.Command, _ []string) error {
	url := serverURL + "/api/nlq/history"
	if status != "" {
		url += "?status=" + status
	}

	req, _ := http.NewRequest("GET", url, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func postJSON(path string, payload any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest("POST", serverURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	// Generation plus execution can take a while; outlast the server's
	// own write timeout so the error we print is the server's.
	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	var result any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
	return nil
}
