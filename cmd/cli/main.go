package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/models"
	"github.com/melodix/backend/internal/notify"
	"github.com/melodix/backend/internal/payments"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var rootCmd = &cobra.Command{
	Use:   "melodix",
	Short: "Melodix admin CLI",
	Long: `Melodix admin CLI runs privileged operations directly against the
database: managing admin accounts, broadcasting announcements, and
completing approved payouts after the money has moved.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = database.Close()
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote-admin <email>",
	Short: "Grant the admin role to an existing user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(args[0]))

		var user models.User
		if err := database.DB.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
			return fmt.Errorf("user %s not found", email)
		}
		if user.Role == models.RoleAdmin {
			fmt.Printf("%s is already an admin\n", email)
			return nil
		}

		if err := database.DB.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		fmt.Printf("%s promoted to admin\n", email)
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin <email> <full-name>",
	Short: "Create a new admin account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(args[0]))
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return fmt.Errorf("--password is required")
		}
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}

		var count int64
		database.DB.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count)
		if count > 0 {
			return fmt.Errorf("user %s already exists", email)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hashStr := string(hash)

		user := models.User{
			Email:        email,
			PasswordHash: &hashStr,
			FullName:     args[1],
			Role:         models.RoleAdmin,
			Status:       models.UserActive,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		fmt.Printf("admin %s created (%s)\n", email, user.ID)
		return nil
	},
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <message>",
	Short: "Send a system notification to every active user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.TrimSpace(args[0])
		if content == "" {
			return fmt.Errorf("message must not be empty")
		}

		// No hub here; stored notifications are picked up on next poll.
		svc := notify.NewService(nil)
		if err := svc.Broadcast(content); err != nil {
			return fmt.Errorf("broadcast failed: %w", err)
		}
		fmt.Println("broadcast stored for all active users")
		return nil
	},
}

var completePaymentCmd = &cobra.Command{
	Use:   "complete-payment <payment-id>",
	Short: "Mark an approved payout as completed",
	Long: `Marks an approved payout as completed once the transfer has actually
been made, and completes the receipts that fed into it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := payments.NewService(nil, nil, 0)
		payment, err := svc.Complete(args[0])
		if err != nil {
			return fmt.Errorf("failed to complete payment: %w", err)
		}
		fmt.Printf("payment %s completed (%d cents to %s)\n",
			payment.ID, payment.TotalAmountCents, payment.RequesterID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("password", "", "Password for the new admin account")

	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(broadcastCmd)
	rootCmd.AddCommand(completePaymentCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
