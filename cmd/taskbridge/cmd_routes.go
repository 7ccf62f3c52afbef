package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"taskbridge/internal/gateway"

	"github.com/spf13/cobra"
)

// routesCmd prints the route table
var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the inbound routes and the backend action each maps to",
	Args:  cobra.NoArgs,
	RunE:  runRoutes,
}

func runRoutes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tACTION\tSOURCE\tFIELDS")
	for _, r := range gateway.Routes {
		fields := "-"
		if len(r.Fields) > 0 {
			fields = strings.Join(r.Fields, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Action, r.Source, fields)
	}
	return w.Flush()
}
