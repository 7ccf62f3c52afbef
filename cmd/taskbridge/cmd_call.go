package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"taskbridge/internal/gateway"

	"github.com/spf13/cobra"
)

var callData string

// callCmd forwards one action without running the server
var callCmd = &cobra.Command{
	Use:   "call [action] [key=value...]",
	Short: "Forward a single action to the backend and print the JSON reply",
	Long: `Builds the same backend request the gateway would for the route that owns
the action, sends it, and prints the normalized JSON response.

Arguments after the action become query parameters for GET routes and
string fields of the JSON body for POST routes. --data supplies a raw JSON
body instead.

Examples:
  taskbridge call getTasks username=alice date=2024-05-01
  taskbridge call updateStatus --data '{"taskId":"T1","status":"done"}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callData, "data", "d", "", "Raw JSON request body for POST actions")
}

func runCall(cmd *cobra.Command, args []string) error {
	route, err := gateway.LookupAction(args[0])
	if err != nil {
		return err
	}

	if callData != "" {
		if route.Source == gateway.SourceQuery {
			return fmt.Errorf("--data cannot be used with %s: it is a %s action", route.Action, route.Method)
		}
		if len(args) > 1 {
			return fmt.Errorf("--data cannot be combined with key=value arguments")
		}
	}

	params, err := parsePairs(args[1:])
	if err != nil {
		return err
	}

	var body []byte
	if route.Source != gateway.SourceQuery {
		body, err = callBody(params)
		if err != nil {
			return err
		}
	}
	env := gateway.Extract(route, params, body)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fwd, err := newForwarder(cfg, nil)
	if err != nil {
		return err
	}
	defer fwd.Close()

	resp := fwd.Call(context.Background(), route.Method, env)

	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body, "", "  "); err != nil {
		out.Reset()
		out.Write(resp.Body)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())

	if resp.Status >= 400 {
		return fmt.Errorf("%s failed with status %d", route.Action, resp.Status)
	}
	return nil
}

// parsePairs turns key=value arguments into url.Values.
func parsePairs(args []string) (url.Values, error) {
	params := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", arg)
		}
		params.Add(key, value)
	}
	return params, nil
}

func callBody(params url.Values) ([]byte, error) {
	if callData != "" {
		if !json.Valid([]byte(callData)) {
			return nil, fmt.Errorf("--data is not valid JSON")
		}
		return []byte(callData), nil
	}

	obj := make(map[string]string, len(params))
	for k := range params {
		obj[k] = params.Get(k)
	}
	return json.Marshal(obj)
}
