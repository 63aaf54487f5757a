// cmd/auroractl is the operational CLI: inspect accounts and push
// notifications directly against the database.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/auroralabs/aurora-backend/internal/accounts"
	"github.com/auroralabs/aurora-backend/internal/config"
	"github.com/auroralabs/aurora-backend/internal/notifications"
	"github.com/auroralabs/aurora-backend/internal/postgres"
)

var databaseURL string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "auroractl",
	Short: "Aurora backend operations CLI",
	Long: `auroractl performs operational tasks against a running Aurora
database: listing accounts and pushing notifications to them.`,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Account operations",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := accounts.NewRepository(db).List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEXTERNAL IDENTITY\tDISPLAY NAME\tUSERNAME\tCREATED")
		for _, a := range list {
			username := ""
			if a.Username != nil {
				username = *a.Username
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.ExternalIdentityID, a.DisplayName, username,
				a.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var (
	notifyLevel   string
	notifyMessage string
)

var notifyCmd = &cobra.Command{
	Use:   "notify <account-id>",
	Short: "Push a notification to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		store := notifications.NewStore(notifications.NewRepository(db), zap.NewNop())
		n, err := store.Create(ctx, accountID, notifications.Level(notifyLevel), notifyMessage)
		if err != nil {
			return err
		}
		fmt.Printf("created notification %s for account %s\n", n.ID, accountID)
		return nil
	},
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	url := databaseURL
	if url == "" {
		if cfg, err := config.Load(); err == nil {
			url = cfg.Database.URL
		}
	}
	if url == "" {
		return nil, fmt.Errorf("no database url: pass --database-url or set DATABASE_URL")
	}
	return postgres.Connect(ctx, url)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection string (defaults to configuration)")
	notifyCmd.Flags().StringVar(&notifyLevel, "level", "info", "notification level: info, warning, error")
	notifyCmd.Flags().StringVar(&notifyMessage, "message", "", "notification message")
	_ = notifyCmd.MarkFlagRequired("message")

	accountsCmd.AddCommand(accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(notifyCmd)
}
