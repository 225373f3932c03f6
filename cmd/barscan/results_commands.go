package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"barscan/internal/ipc"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Show the result fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Results()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Fields)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, resultRows(resp.Fields), nil))
				return nil
			})
		},
	}
	resultsCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the fields as a JSON object")

	resultsCmd.AddCommand(&cobra.Command{
		Use:   "get <field>",
		Short: "Print one result field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GetField(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Value)
				return nil
			})
		},
	})
	resultsCmd.AddCommand(&cobra.Command{
		Use:   "set <field> <value>",
		Short: "Overwrite one result field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetField(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", resp.Field, resp.Value)
				return nil
			})
		},
	})
	resultsCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore every field to its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ResetResults(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Result fields reset")
				return nil
			})
		},
	})
	return resultsCmd
}
