// Command mcpcli is a thin inspector over the mcpclient facade: list the
// tool catalog of every server named in a server-definition file, or call
// one tool and print its result.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesprial/mcp-client/pkg/mcpclient"
)

var (
	definitionFile string
	serverName     string
	jsonOutput     bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcpcli",
		Short:         "Inspect and exercise MCP servers from a server-definition file",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&definitionFile, "servers", "", "path to a server-definition JSON file (required)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	root.MarkPersistentFlagRequired("servers")

	root.AddCommand(listToolsCmd())
	root.AddCommand(callToolCmd())
	return root
}

func openClient() (*mcpclient.Client, error) {
	return mcpclient.NewFromFile(definitionFile, nil)
}

func listToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List every tool exposed across all configured servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Cleanup()

			tools, err := client.ListTools(cmd.Context(), true)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(tools)
			}
			for _, t := range tools {
				fmt.Printf("%s\t%s\t%s\n", t.ServerName, t.Name, t.Description)
			}
			return nil
		},
	}
}

func callToolCmd() *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "call-tool <name>",
		Short: "Invoke a single tool by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cliArgs []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Cleanup()

			var params any
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &params); err != nil {
					return fmt.Errorf("invalid --args JSON: %w", err)
				}
			}

			result, err := client.CallTool(cmd.Context(), cliArgs[0], params, serverName)
			if err != nil {
				return err
			}
			fmt.Println(string(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "", "JSON-encoded tool arguments")
	cmd.Flags().StringVar(&serverName, "server", "", "disambiguate by server name when the tool name is not unique")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
