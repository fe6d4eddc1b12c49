package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	resourcesType string
	resourcesUser string
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Browse the indexed resource store",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, idx := openStores()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Type", "Field", "Tool", "User", "Discovered"})

		shown := 0
		for _, res := range idx.List() {
			if resourcesType != "" && string(res.Type) != resourcesType {
				continue
			}
			if resourcesUser != "" && res.DiscoveredFromUser != resourcesUser {
				continue
			}
			discovered := time.UnixMilli(res.Timestamp).Format("2006-01-02 15:04")
			t.AppendRow(table.Row{res.ID, res.Type, res.FieldName, res.DiscoveredByTool, res.DiscoveredFromUser, discovered})
			shown++
		}
		if shown == 0 {
			fmt.Println("No resources match")
			return nil
		}
		t.Render()
		return nil
	},
}

var resourcesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all indexed resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, idx := openStores()
		if err := idx.Clear(); err != nil {
			return err
		}
		fmt.Println("Resource store cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
	resourcesCmd.AddCommand(resourcesListCmd, resourcesClearCmd)

	resourcesListCmd.Flags().StringVar(&resourcesType, "type", "", "Only show resources of this type (uuid, numeric, path, slug, unknown)")
	resourcesListCmd.Flags().StringVar(&resourcesUser, "user", "", "Only show resources discovered by this user")
}
