package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/biscicol/bcid/internal/api/auth"
	"github.com/biscicol/bcid/internal/api/users"
	"github.com/biscicol/bcid/internal/models"
)

var (
	userUsername string
	userEmail    string
	userRole     string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing BCID users directly in the database.

Examples:
  # List users
  bcidctl user list

  # Create a user (prompts for password)
  bcidctl user create --username alice --email alice@example.org --role curator`,
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		list, err := store.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		fmt.Printf("\n%-6s  %-20s  %-30s  %-8s  %s\n", "ID", "USERNAME", "EMAIL", "ROLE", "CREATED")
		fmt.Println(strings.Repeat("-", 85))

		for _, u := range list {
			fmt.Printf("%-6d  %-20s  %-30s  %-8s  %s\n",
				u.ID, u.Username, truncate(u.Email, 30), u.Role,
				u.CreatedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("\nTotal: %d user(s)\n", len(list))

		return nil
	},
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user in the database. The password is prompted for
interactively and never echoed.

Available roles:
  - admin:   full access, can manage users and resources
  - curator: can create projects and mint expeditions
  - viewer:  read-only access

Example:
  bcidctl user create --username alice --email alice@example.org --role curator`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := users.ValidateUsername(userUsername); err != nil {
			return err
		}
		if err := users.ValidateEmail(userEmail); err != nil {
			return err
		}
		role, err := users.ValidateRole(userRole)
		if err != nil {
			return err
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if err := auth.ValidatePassword(password); err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		existing, err := store.Users().GetByUsername(ctx, userUsername)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("username already exists: %s", userUsername)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.NewUser(strings.TrimSpace(userUsername), strings.TrimSpace(userEmail), role)
		user.PasswordHash = string(hash)

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("\nUser created successfully:\n")
		fmt.Printf("  ID:       %d\n", user.ID)
		fmt.Printf("  Username: %s\n", user.Username)
		fmt.Printf("  Email:    %s\n", user.Email)
		fmt.Printf("  Role:     %s\n", user.Role)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "username (required)")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email address (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", "viewer", "role (admin, curator, viewer)")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("email")
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
