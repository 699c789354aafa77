package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cppla/yatube/models"
	"github.com/cppla/yatube/utils"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage post groups",
}

var groupCreate struct {
	title       string
	slug        string
	description string
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a group",
	RunE: func(cmd *cobra.Command, _ []string) error {
		group := models.Group{
			Title:       strings.TrimSpace(groupCreate.title),
			Slug:        strings.TrimSpace(groupCreate.slug),
			Description: utils.Sanitize(groupCreate.description),
		}
		if group.Title == "" || group.Slug == "" {
			return fmt.Errorf("both --title and --slug are required")
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.CreateGroup(commandContext(cmd), &group); err != nil {
			return err
		}
		cmd.Printf("group %q created with id %d\n", group.Slug, group.ID)
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		groups, err := e.store.ListGroups(commandContext(cmd))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSLUG\tTITLE")
		for _, g := range groups {
			fmt.Fprintf(w, "%d\t%s\t%s\n", g.ID, g.Slug, g.Title)
		}
		return w.Flush()
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a group; its posts stay without a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := commandContext(cmd)
		group, err := e.store.GroupBySlug(ctx, args[0])
		if err != nil {
			return fmt.Errorf("group %q: %w", args[0], err)
		}
		if err := e.store.DeleteGroup(ctx, group.ID); err != nil {
			return err
		}
		cmd.Printf("group %q deleted\n", group.Slug)
		return nil
	},
}

func init() {
	f := groupCreateCmd.Flags()
	f.StringVar(&groupCreate.title, "title", "", "group title")
	f.StringVar(&groupCreate.slug, "slug", "", "unique slug used in /group/<slug>/")
	f.StringVar(&groupCreate.description, "description", "", "description, limited HTML allowed")
	groupCmd.AddCommand(groupCreateCmd, groupListCmd, groupDeleteCmd)
}
