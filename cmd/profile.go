package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"mcpinspect/internal/profile"
)

var (
	profileColor   string
	profileAuth    string
	profileHeaders []string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles",
	Long: `Profiles attribute indexed resources to a user and carry the
authorization header and extra headers used when calling the server on
that user's behalf. One profile can be active at a time; calls made with
no active profile are indexed as anonymous.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, profiles, _ := openStores()

		list := profiles.List()
		if len(list) == 0 {
			fmt.Println("No profiles defined")
			return nil
		}

		activeID := profiles.ActiveID()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Name", "Color", "Active"})
		for _, p := range list {
			active := ""
			if p.ID == activeID {
				active = text.FgGreen.Sprint("yes")
			}
			t.AppendRow(table.Row{p.ID, p.DisplayName, string(p.ColorTag), active})
		}
		t.Render()
		return nil
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <display-name>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, profiles, _ := openStores()

		headers, err := parseHeaderFlags(profileHeaders)
		if err != nil {
			return err
		}

		created, err := profiles.Create(args[0], profile.ColorTag(profileColor), profileAuth, headers)
		if err != nil {
			return err
		}
		fmt.Printf("Created profile %s (%s)\n", created.DisplayName, created.ID)
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <id> <display-name>",
	Short: "Update a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, profiles, _ := openStores()

		headers, err := parseHeaderFlags(profileHeaders)
		if err != nil {
			return err
		}

		updated, err := profiles.Update(args[0], args[1], profile.ColorTag(profileColor), profileAuth, headers)
		if err != nil {
			return err
		}
		fmt.Printf("Updated profile %s\n", updated.ID)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, profiles, _ := openStores()
		if err := profiles.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %s\n", args[0])
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <id|none>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, profiles, _ := openStores()

		id := args[0]
		if id == "none" {
			id = ""
		}
		if err := profiles.SetActive(id); err != nil {
			return err
		}
		if id == "" {
			fmt.Println("Active profile cleared")
		} else {
			fmt.Printf("Active profile is now %s\n", id)
		}
		return nil
	},
}

func parseHeaderFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(flags))
	for _, entry := range flags {
		key, value, found := strings.Cut(entry, ":")
		if !found {
			return nil, fmt.Errorf("header %q must be Key:Value", entry)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd, profileCreateCmd, profileUpdateCmd, profileDeleteCmd, profileUseCmd)

	for _, c := range []*cobra.Command{profileCreateCmd, profileUpdateCmd} {
		c.Flags().StringVar(&profileColor, "color", "blue", fmt.Sprintf("Color tag (%s)", strings.Join(colorNames(), ", ")))
		c.Flags().StringVar(&profileAuth, "authorization", "", "Authorization header value")
		c.Flags().StringArrayVar(&profileHeaders, "header", nil, "Extra header as Key:Value (repeatable)")
	}
}

func colorNames() []string {
	colors := profile.Colors()
	names := make([]string, len(colors))
	for i, c := range colors {
		names[i] = string(c)
	}
	return names
}
