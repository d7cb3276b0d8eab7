package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biscicol/bcid/internal/minter"
)

var (
	projectCode   string
	projectIDStr  string
	projectTitle  string
	projectPublic bool
	projectOwner  string
	memberUser    string
	memberUserID  string
)

// projectCmd represents the project command group
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project management commands",
	Long: `Commands for managing BCID projects.

Projects are the namespaces inside which expedition codes are unique.
These commands operate directly on the database file.

Examples:
  # List all projects
  bcidctl project list

  # Create a project
  bcidctl project create --code BALI --title "Bali reef survey" --owner admin

  # List project members
  bcidctl project members --project BALI

  # Add a member
  bcidctl project add-member --project BALI --user alice`,
}

// projectListCmd lists all projects
var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		// Direct DB access also shows private projects.
		projects, err := store.Projects().ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		fmt.Printf("\n%-6s  %-8s  %-40s  %-7s  %s\n", "ID", "CODE", "TITLE", "PUBLIC", "CREATED")
		fmt.Println(strings.Repeat("-", 80))

		for _, p := range projects {
			fmt.Printf("%-6d  %-8s  %-40s  %-7t  %s\n",
				p.ID,
				p.Code,
				truncate(p.Title, 40),
				p.Public,
				p.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d project(s)\n", len(projects))

		return nil
	},
}

// projectCreateCmd creates a new project
var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project",
	Long: `Create a new project owned by an existing user.

The project code must be 4 to 6 alphanumeric characters.

Example:
  bcidctl project create --code BALI --title "Bali reef survey" --owner admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		owner, err := resolveUser(ctx, store.Users(), projectOwner, "")
		if err != nil {
			return err
		}

		pm := minter.NewProjectMinter(store)
		project, err := pm.Create(ctx, strings.TrimSpace(projectCode), strings.TrimSpace(projectTitle), projectPublic, owner.ID)
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		fmt.Printf("\nProject created successfully:\n")
		fmt.Printf("  ID:     %d\n", project.ID)
		fmt.Printf("  Code:   %s\n", project.Code)
		fmt.Printf("  Title:  %s\n", project.Title)
		fmt.Printf("  Public: %t\n", project.Public)
		fmt.Printf("  Owner:  %s\n", owner.Username)

		return nil
	},
}

// projectMembersCmd lists project members
var projectMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List project members",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		project, err := resolveProject(ctx, store.Projects(), projectCode, projectIDStr)
		if err != nil {
			return err
		}

		members, err := store.Projects().Members(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("get members: %w", err)
		}

		fmt.Printf("\nMembers of project '%s':\n\n", project.Code)

		if len(members) == 0 {
			fmt.Println("No members found.")
			return nil
		}

		fmt.Printf("%-6s  %-20s  %s\n", "ID", "USERNAME", "EMAIL")
		fmt.Println(strings.Repeat("-", 60))

		for _, m := range members {
			fmt.Printf("%-6d  %-20s  %s\n", m.UserID, m.Username, m.Email)
		}
		fmt.Printf("\nTotal: %d member(s)\n", len(members))

		return nil
	},
}

// projectAddMemberCmd adds a member to a project
var projectAddMemberCmd = &cobra.Command{
	Use:   "add-member",
	Short: "Add a user to a project",
	Long: `Add a user to a project, authorizing them to mint expeditions in it.

Adding an existing member is a no-op.

Examples:
  bcidctl project add-member --project BALI --user alice
  bcidctl project add-member --project-id 4 --user-id 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		project, err := resolveProject(ctx, store.Projects(), projectCode, projectIDStr)
		if err != nil {
			return err
		}

		user, err := resolveUser(ctx, store.Users(), memberUser, memberUserID)
		if err != nil {
			return err
		}

		if err := store.Projects().AddMember(ctx, project.ID, user.ID); err != nil {
			return fmt.Errorf("add member: %w", err)
		}

		fmt.Printf("Added %s to project '%s'\n", user.Username, project.Code)
		return nil
	},
}

// projectRemoveMemberCmd removes a member from a project
var projectRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member",
	Short: "Remove a user from a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		project, err := resolveProject(ctx, store.Projects(), projectCode, projectIDStr)
		if err != nil {
			return err
		}

		user, err := resolveUser(ctx, store.Users(), memberUser, memberUserID)
		if err != nil {
			return err
		}

		if project.UserID == user.ID {
			fmt.Fprintln(os.Stderr, "Warning: removing the project owner from membership")
		}

		if err := store.Projects().RemoveMember(ctx, project.ID, user.ID); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}

		fmt.Printf("Removed %s from project '%s'\n", user.Username, project.Code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectMembersCmd)
	projectCmd.AddCommand(projectAddMemberCmd)
	projectCmd.AddCommand(projectRemoveMemberCmd)

	// Create flags
	projectCreateCmd.Flags().StringVar(&projectCode, "code", "", "project code (required, 4-6 alphanumeric)")
	projectCreateCmd.Flags().StringVar(&projectTitle, "title", "", "project title (required)")
	projectCreateCmd.Flags().BoolVar(&projectPublic, "public", false, "make the project publicly visible")
	projectCreateCmd.Flags().StringVar(&projectOwner, "owner", "", "owning username (required)")
	projectCreateCmd.MarkFlagRequired("code")
	projectCreateCmd.MarkFlagRequired("title")
	projectCreateCmd.MarkFlagRequired("owner")

	// Member selection flags
	for _, c := range []*cobra.Command{projectMembersCmd, projectAddMemberCmd, projectRemoveMemberCmd} {
		c.Flags().StringVar(&projectCode, "project", "", "project code")
		c.Flags().StringVar(&projectIDStr, "project-id", "", "project id")
	}
	for _, c := range []*cobra.Command{projectAddMemberCmd, projectRemoveMemberCmd} {
		c.Flags().StringVar(&memberUser, "user", "", "username")
		c.Flags().StringVar(&memberUserID, "user-id", "", "user id")
	}
}
