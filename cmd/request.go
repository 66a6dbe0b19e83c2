package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/cli"
	"storefront/internal/gateway"
)

// Request-specific flags
var (
	requestData    string
	requestHeaders []string
	requestInclude bool
)

// requestCmd represents the request command
var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send an authenticated request to the storefront gateway",
	Long: `Send a request to the storefront gateway with the session's access token.

PATH is resolved against gateway.baseURL. A 401 response triggers one token
renewal and one retry. The response body is written to stdout.

Examples:
  storefront request GET /api/products
  storefront request POST /api/orders --data '{"productId": 7, "quantity": 2}'
  storefront request PUT /api/orders/12 --data @order.json -H 'If-Match: "3"'`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "Request body, or @file to read it from a file (@- for stdin)")
	requestCmd.Flags().StringArrayVarP(&requestHeaders, "header", "H", nil, "Extra header in 'Name: value' form (repeatable)")
	requestCmd.Flags().BoolVarP(&requestInclude, "include", "i", false, "Print the response status and headers")
}

func runRequest(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path := args[1]

	body, err := readRequestBody(cmd, requestData)
	if err != nil {
		return err
	}

	application, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	settings := application.Settings()
	gw := application.Services().Gateway

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := gw.NewRequest(cmd.Context(), method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range requestHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := gw.Do(req)
	if err != nil {
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) {
			return cli.ClassifyAuthError(err, settings.Session.Name)
		}
		return cli.ClassifyConnectionError(err, settings.Gateway.BaseURL)
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	if requestInclude {
		fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
		_ = resp.Header.Write(out)
		fmt.Fprintln(out)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &cli.AuthExpiredError{Session: settings.Session.Name}
	case resp.StatusCode >= 400:
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return nil
}

func readRequestBody(cmd *cobra.Command, data string) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}
