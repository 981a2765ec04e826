package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mhrabal/photovault/internal/config"
	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/database/postgres"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a new user",
	Long: `Create a new user account.

Example:
  photovault user create anna@example.com --name "Anna" --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runUserCreate,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("password", "", "Password (required)")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	email := args[0]
	name := mustGetString(cmd, "name")
	password := mustGetString(cmd, "password")

	if password == "" {
		return fmt.Errorf("--password is required")
	}
	if name == "" {
		name = email
	}

	ctx := context.Background()
	cfg := config.Load()

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	users := postgres.NewUserRepository(pool)
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("a user with email %s already exists", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user: %s\n", user.Email)
	fmt.Printf("ID: %s\n", user.ID)
	return nil
}
