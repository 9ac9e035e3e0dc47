// Package main は証明書発行APIを操作するCLIツールのエントリポイント。
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dscctl",
		Short:         "Document Signing Certificate Issuer CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("DSCCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}
	rootCmd.SetOut(out)

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set DSCCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dscctl version %s\n", version)
		},
	}
}

// call はAPIを呼び出し、ステータスコードとボディを返す。
func call(ctx context.Context, method, path string) (int, []byte, error) {
	if apiURL == "" {
		return 0, nil, fmt.Errorf("--api-url is required (or set DSCCTL_API_URL)")
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// issueCmd は設定された鍵の証明書発行コマンド。
func issueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Issue a document signing certificate for the configured key",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := call(cmd.Context(), http.MethodPost, "/v1/certificate")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch status {
			case http.StatusCreated:
			case http.StatusConflict:
				// 既存の証明書がある場合は中断扱いで正常終了する
				if output == "json" {
					fmt.Fprintln(out, string(body))
				} else {
					fmt.Fprintln(out, "Certificate already exists for this key; nothing was issued.")
				}
				return nil
			default:
				return handleErrorResponse(status, body)
			}

			if output == "json" {
				fmt.Fprintln(out, string(body))
				return nil
			}
			var result struct {
				KeyID          string `json:"key_id"`
				CertificateARN string `json:"certificate_arn"`
				ObjectKey      string `json:"object_key"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(out, "Issued certificate for key %q\n  ARN:    %s\n  Object: %s\n", result.KeyID, result.CertificateARN, result.ObjectKey)
			return nil
		},
	}
}

// inspectCmd は保存済み証明書の表示コマンド。
func inspectCmd() *cobra.Command {
	var keyID string
	var showPEM bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the stored certificate for a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyID == "" {
				return fmt.Errorf("--key is required")
			}
			status, body, err := call(cmd.Context(), http.MethodGet, "/v1/keys/"+keyID+"/certificate")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}
			out := cmd.OutOrStdout()

			if output == "json" {
				fmt.Fprintln(out, string(body))
				return nil
			}
			var result struct {
				KeyID          string `json:"key_id"`
				CommonName     string `json:"common_name"`
				Country        string `json:"country"`
				Issuer         string `json:"issuer"`
				SerialNumber   string `json:"serial_number"`
				NotBefore      string `json:"not_before"`
				NotAfter       string `json:"not_after"`
				CertificatePEM string `json:"certificate_pem"`
				LastIssuance   *struct {
					CertificateARN string `json:"certificate_arn"`
					Status         string `json:"status"`
				} `json:"last_issuance"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "KEY ID\t%s\n", result.KeyID)
			fmt.Fprintf(w, "SUBJECT\tCN=%s, C=%s\n", result.CommonName, result.Country)
			fmt.Fprintf(w, "ISSUER\t%s\n", result.Issuer)
			fmt.Fprintf(w, "SERIAL\t%s\n", result.SerialNumber)
			fmt.Fprintf(w, "VALIDITY\t%s - %s\n", result.NotBefore, result.NotAfter)
			if result.LastIssuance != nil {
				fmt.Fprintf(w, "LAST ISSUANCE\t%s (%s)\n", result.LastIssuance.CertificateARN, result.LastIssuance.Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if showPEM {
				fmt.Fprint(out, result.CertificatePEM)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keyID, "key", "", "Signing key ID (required)")
	cmd.Flags().BoolVar(&showPEM, "pem", false, "Print the PEM encoded certificate")
	cmd.MarkFlagRequired("key")
	return cmd
}

// reconcileCmd はCAにのみ存在する証明書の保存コマンド。
func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Persist certificates that were issued by the CA but never stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := call(cmd.Context(), http.MethodPost, "/v1/reconcile")
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return handleErrorResponse(status, body)
			}
			out := cmd.OutOrStdout()

			if output == "json" {
				fmt.Fprintln(out, string(body))
				return nil
			}
			var result struct {
				Checked   int `json:"checked"`
				Persisted int `json:"persisted"`
				Pending   int `json:"pending"`
				Failed    int `json:"failed"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(out, "Checked %d record(s): %d persisted, %d pending, %d failed\n",
				result.Checked, result.Persisted, result.Pending, result.Failed)
			return nil
		},
	}
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
	}
	return fmt.Errorf("server returned status %d", statusCode)
}
