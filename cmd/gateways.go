package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mstgnz/gomerchant/gateway"
	"github.com/spf13/cobra"
)

func newGatewaysCommand() *cobra.Command {
	var showConfig bool

	cmd := &cobra.Command{
		Use:   "gateways",
		Short: "List the bundled payment gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listGateways(cmd, gateway.DefaultRegistry, showConfig)
		},
	}

	cmd.Flags().BoolVar(&showConfig, "config", false, "Show the configuration fields of each gateway")

	return cmd
}

func listGateways(cmd *cobra.Command, registry *gateway.Registry, showConfig bool) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tCOUNTRIES\tREQUIRED CONFIG")

	for _, name := range registry.Names() {
		gw, err := registry.New(name)
		if err != nil {
			return err
		}
		info := gw.Info()

		var required []string
		for _, field := range gw.GetRequiredConfig() {
			if field.Required {
				required = append(required, field.Key)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, info.DisplayName, strings.Join(info.SupportedCountries, ","), strings.Join(required, ","))

		if showConfig {
			for _, field := range gw.GetRequiredConfig() {
				flags := field.Type
				if field.Required {
					flags += ", required"
				}
				if field.Secret {
					flags += ", secret"
				}
				fmt.Fprintf(w, "  %s\t(%s)\t%s\t\n", field.Key, flags, field.Description)
			}
		}
	}
	return w.Flush()
}
