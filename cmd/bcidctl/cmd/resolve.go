package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biscicol/bcid/internal/minter"
)

var (
	resolveToken     string
	resolvePrefix    string
	resolveCode      string
	resolveProjectID string
	resolveProjCode  string
)

// resolveCmd resolves identifiers directly against the database.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an identifier",
	Long: `Resolve an allocation token, a resource prefix, or an expedition
code within a project.

Examples:
  bcidctl resolve --token 2b1f9c...
  bcidctl resolve --prefix ark:/21547/R2
  bcidctl resolve --code DEMO1 --project BALI`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		res := minter.NewResolver(store)

		switch {
		case resolveToken != "":
			id, err := res.ByToken(ctx, resolveToken)
			if err != nil {
				return fmt.Errorf("resolve token: %w", err)
			}
			fmt.Printf("Expedition ID: %d\n", id)

		case resolvePrefix != "":
			resource, err := res.Resource(ctx, resolvePrefix)
			if err != nil {
				return fmt.Errorf("resolve resource: %w", err)
			}
			fmt.Println("\nResource:")
			fmt.Printf("  ID:     %d\n", resource.ID)
			fmt.Printf("  Prefix: %s\n", resource.Prefix)
			fmt.Printf("  Type:   %s\n", resource.ResourceType)
			if resource.WebAddress != "" {
				fmt.Printf("  Target: %s\n", resource.WebAddress)
			}

		case resolveCode != "":
			project, err := resolveProject(ctx, store.Projects(), resolveProjCode, resolveProjectID)
			if err != nil {
				return err
			}
			meta, err := res.ByCode(ctx, resolveCode, project.ID)
			if err != nil {
				return fmt.Errorf("resolve code: %w", err)
			}
			fmt.Println("\nExpedition:")
			fmt.Printf("  ID:      %d\n", meta.ID)
			fmt.Printf("  Code:    %s\n", meta.Code)
			fmt.Printf("  Title:   %s\n", meta.Title)
			fmt.Printf("  Owner:   %s\n", meta.Username)
			fmt.Printf("  Project: %s\n", meta.ProjectCode)

		default:
			return fmt.Errorf("specify --token, --prefix, or --code with --project")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveToken, "token", "", "allocation token")
	resolveCmd.Flags().StringVar(&resolvePrefix, "prefix", "", "resource prefix")
	resolveCmd.Flags().StringVar(&resolveCode, "code", "", "expedition code")
	resolveCmd.Flags().StringVar(&resolveProjCode, "project", "", "project code (with --code)")
	resolveCmd.Flags().StringVar(&resolveProjectID, "project-id", "", "project id (with --code)")
}
