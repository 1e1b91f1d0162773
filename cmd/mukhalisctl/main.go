package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dalemusser/mukhalis/internal/app/ops"
	businessstore "github.com/dalemusser/mukhalis/internal/app/store/businesses"
	notificationstore "github.com/dalemusser/mukhalis/internal/app/store/notifications"
	userstore "github.com/dalemusser/mukhalis/internal/app/store/users"
	"github.com/dalemusser/mukhalis/internal/app/system/notify"
	"github.com/dalemusser/mukhalis/internal/app/system/push"
	"github.com/dalemusser/mukhalis/internal/domain/models"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	mongoURI string
	mongoDB  string
	timeout  time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "mukhalisctl",
	Short:         "Operator tasks for the Mukhalis backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", envOr("MUKHALIS_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	rootCmd.PersistentFlags().StringVar(&mongoDB, "mongo-database", envOr("MUKHALIS_MONGO_DATABASE", "mukhalis"), "MongoDB database name")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command deadline")

	sendTestCmd.Flags().Bool("push", false, "Deliver through Expo instead of logging the push")
	sendTestCmd.Flags().String("expo-url", envOr("MUKHALIS_EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"), "Expo push endpoint")
	sendTestCmd.Flags().String("expo-token", os.Getenv("MUKHALIS_EXPO_ACCESS_TOKEN"), "Expo access token")

	listUsersCmd.Flags().String("role", "", "Only list this role (individual, company, admin, moderator)")
	listUsersCmd.Flags().Int64("limit", 50, "Maximum users to list")

	promoteCmd.Flags().Bool("owners", false, "Promote every business owner still marked individual")
	promoteCmd.Flags().Bool("dry-run", false, "With --owners, report without changing anything")

	rootCmd.AddCommand(sendTestCmd, listUsersCmd, promoteCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// withDB connects, runs fn, and disconnects.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *mongo.Database) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return fn(ctx, client.Database(mongoDB))
}

var sendTestCmd = &cobra.Command{
	Use:   "send-test-notification USER_ID [TYPE]",
	Short: "Send a canned notification to one user",
	Long: `Send a canned notification to one user, bypassing their preferences.

TYPE defaults to system. The record is saved to the user's inbox; the push
is only logged unless --push is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := primitive.ObjectIDFromHex(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		typ := models.NotificationSystem
		if len(args) == 2 {
			typ = models.NotificationType(args[1])
		}
		usePush, _ := cmd.Flags().GetBool("push")
		expoURL, _ := cmd.Flags().GetString("expo-url")
		expoToken, _ := cmd.Flags().GetString("expo-token")

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		var gateway push.Gateway = push.LogGateway{Log: logger}
		if usePush {
			gateway = push.NewExpoGateway(expoURL, expoToken, 10*time.Second, logger)
		}

		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			svc := notify.NewService(userstore.New(db), notificationstore.New(db), businessstore.New(db), gateway, nil, logger)
			return ops.SendTest(ctx, svc, userID, typ, cmd.OutOrStdout())
		})
	},
}

var listUsersCmd = &cobra.Command{
	Use:   "list-users",
	Short: "List users, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		limit, _ := cmd.Flags().GetInt64("limit")
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			return ops.ListUsers(ctx, userstore.New(db), cmd.OutOrStdout(), role, limit)
		})
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote-company [USER_ID]",
	Short: "Switch an individual account to the company role",
	Long: `Switch an individual account to the company role.

With --owners, every business owner whose account is still individual is
promoted instead; combine with --dry-run to preview.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owners, _ := cmd.Flags().GetBool("owners")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if owners == (len(args) == 1) {
			return fmt.Errorf("give either USER_ID or --owners")
		}
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			users := userstore.New(db)
			if owners {
				_, err := ops.PromoteOwners(ctx, businessstore.New(db), users, cmd.OutOrStdout(), dryRun)
				return err
			}
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return ops.PromoteUser(ctx, users, id, cmd.OutOrStdout())
		})
	},
}
