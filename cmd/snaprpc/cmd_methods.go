package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"snaprpc/server/internal/methods"
	"snaprpc/server/internal/snaps"
)

func newMethodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the permitted methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMethods(cmd, methods.Permitted(snaps.NewMerger()))
		},
	}
}

func printMethods(cmd *cobra.Command, registry *methods.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSNAP ONLY\tHOOKS\tALLOWED ORIGINS")
	for _, name := range registry.Names() {
		h, _ := registry.Lookup(name)
		origins := "*"
		if len(h.AllowedOrigins) > 0 {
			origins = strings.Join(h.AllowedOrigins, ",")
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", name, methods.IsSnapOnly(name), strings.Join(h.HookNames, ","), origins)
	}
	return w.Flush()
}
