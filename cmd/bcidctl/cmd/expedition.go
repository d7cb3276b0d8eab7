package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biscicol/bcid/internal/minter"
)

var (
	expProject   string
	expProjectID string
	expCode      string
	expTitle     string
	expAbstract  string
	expUser      string
	expUserID    string
	expPrefix    string
)

// expeditionCmd represents the expedition command group
var expeditionCmd = &cobra.Command{
	Use:   "expedition",
	Short: "Expedition minting and lookup commands",
	Long: `Commands for minting and inspecting expeditions.

Minting goes through the same allocation path as the HTTP API: the
caller must be a member of the project, the code must be 4 to 6
alphanumeric characters, and the (code, project) pair must be unused.

Examples:
  # Mint an expedition
  bcidctl expedition mint --project BALI --code DEMO1 --title "Demo" --user alice

  # Show expedition metadata by numeric id
  bcidctl expedition show 42

  # List expeditions owned by a user
  bcidctl expedition list --user alice`,
}

// expeditionMintCmd mints a new expedition
var expeditionMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a new expedition",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		project, err := resolveProject(ctx, store.Projects(), expProject, expProjectID)
		if err != nil {
			return err
		}
		user, err := resolveUser(ctx, store.Users(), expUser, expUserID)
		if err != nil {
			return err
		}

		// No registration queue here: direct mints are local-only.
		em := minter.NewExpeditionMinter(store, nil, minter.ExpeditionConfig{})
		id, err := em.Mint(ctx, minter.MintRequest{
			Code:      strings.TrimSpace(expCode),
			Title:     strings.TrimSpace(expTitle),
			Abstract:  expAbstract,
			UserID:    user.ID,
			ProjectID: project.ID,
		})
		if err != nil {
			return fmt.Errorf("mint expedition: %w", err)
		}

		fmt.Printf("\nExpedition minted successfully:\n")
		fmt.Printf("  ID:      %d\n", id)
		fmt.Printf("  Code:    %s\n", expCode)
		fmt.Printf("  Project: %s\n", project.Code)
		fmt.Printf("  Owner:   %s\n", user.Username)

		return nil
	},
}

// expeditionShowCmd shows expedition metadata
var expeditionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show expedition metadata by numeric id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid expedition id: %s", args[0])
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		meta, err := store.Expeditions().Metadata(ctx, id)
		if err != nil {
			return fmt.Errorf("get expedition: %w", err)
		}
		if meta == nil {
			return fmt.Errorf("expedition not found: %d", id)
		}

		fmt.Println("\nExpedition Details:")
		fmt.Printf("  ID:       %d\n", meta.ID)
		fmt.Printf("  Code:     %s\n", meta.Code)
		fmt.Printf("  Title:    %s\n", meta.Title)
		if meta.Abstract != "" {
			fmt.Printf("  Abstract: %s\n", meta.Abstract)
		}
		fmt.Printf("  Owner:    %s\n", meta.Username)
		fmt.Printf("  Project:  %s (%s)\n", meta.ProjectCode, meta.ProjectTitle)
		fmt.Printf("  Created:  %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))

		resources, err := store.Expeditions().Resources(ctx, meta.ID)
		if err == nil && len(resources) > 0 {
			fmt.Printf("  Resources:\n")
			for _, res := range resources {
				fmt.Printf("    %s (%s)\n", res.Prefix, res.ResourceType)
			}
		}

		return nil
	},
}

// expeditionListCmd lists a user's expeditions
var expeditionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expeditions owned by a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := resolveUser(ctx, store.Users(), expUser, expUserID)
		if err != nil {
			return err
		}

		metas, err := store.Expeditions().ListForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list expeditions: %w", err)
		}

		if len(metas) == 0 {
			fmt.Printf("No expeditions found for %s.\n", user.Username)
			return nil
		}

		fmt.Printf("\n%-6s  %-8s  %-30s  %-8s  %s\n", "ID", "CODE", "TITLE", "PROJECT", "CREATED")
		fmt.Println(strings.Repeat("-", 75))

		for _, m := range metas {
			fmt.Printf("%-6d  %-8s  %-30s  %-8s  %s\n",
				m.ID, m.Code, truncate(m.Title, 30), m.ProjectCode,
				m.CreatedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("\nTotal: %d expedition(s)\n", len(metas))

		return nil
	},
}

// expeditionAttachCmd attaches a resource to an expedition
var expeditionAttachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach a registered resource to an expedition",
	Long: `Attach a resource, identified by its prefix, to an expedition
identified by its code and project.

Example:
  bcidctl expedition attach --project BALI --code DEMO1 --prefix ark:/21547/R2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		project, err := resolveProject(ctx, store.Projects(), expProject, expProjectID)
		if err != nil {
			return err
		}

		em := minter.NewExpeditionMinter(store, nil, minter.ExpeditionConfig{})
		if err := em.AttachResource(ctx, strings.TrimSpace(expCode), project.ID, strings.TrimSpace(expPrefix)); err != nil {
			return fmt.Errorf("attach resource: %w", err)
		}

		fmt.Printf("Attached %s to expedition %s in project %s\n", expPrefix, expCode, project.Code)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expeditionCmd)
	expeditionCmd.AddCommand(expeditionMintCmd)
	expeditionCmd.AddCommand(expeditionShowCmd)
	expeditionCmd.AddCommand(expeditionListCmd)
	expeditionCmd.AddCommand(expeditionAttachCmd)

	// Mint flags
	expeditionMintCmd.Flags().StringVar(&expProject, "project", "", "project code")
	expeditionMintCmd.Flags().StringVar(&expProjectID, "project-id", "", "project id")
	expeditionMintCmd.Flags().StringVar(&expCode, "code", "", "expedition code (required, 4-6 alphanumeric)")
	expeditionMintCmd.Flags().StringVar(&expTitle, "title", "", "expedition title (required)")
	expeditionMintCmd.Flags().StringVar(&expAbstract, "abstract", "", "expedition abstract")
	expeditionMintCmd.Flags().StringVar(&expUser, "user", "", "minting username")
	expeditionMintCmd.Flags().StringVar(&expUserID, "user-id", "", "minting user id")
	expeditionMintCmd.MarkFlagRequired("code")
	expeditionMintCmd.MarkFlagRequired("title")

	// List flags
	expeditionListCmd.Flags().StringVar(&expUser, "user", "", "username")
	expeditionListCmd.Flags().StringVar(&expUserID, "user-id", "", "user id")

	// Attach flags
	expeditionAttachCmd.Flags().StringVar(&expProject, "project", "", "project code")
	expeditionAttachCmd.Flags().StringVar(&expProjectID, "project-id", "", "project id")
	expeditionAttachCmd.Flags().StringVar(&expCode, "code", "", "expedition code (required)")
	expeditionAttachCmd.Flags().StringVar(&expPrefix, "prefix", "", "resource prefix (required)")
	expeditionAttachCmd.MarkFlagRequired("code")
	expeditionAttachCmd.MarkFlagRequired("prefix")
}
