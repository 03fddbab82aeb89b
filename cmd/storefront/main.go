package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"storefront/internal/apiclient"
	"storefront/internal/config"
	"storefront/internal/notify"
	"storefront/internal/repository/record"
)

var (
	// Global flags
	verbose   bool
	baseURL   string
	storeKind string
	namespace string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Headless storefront client: cart, wishlist and variant tools",
	Long: `storefront drives the storefront JSON API the way the shop front-end does.

The cart and wishlist records are kept in a record store so they survive between runs:
  jar       in-process cookie jar (nothing is kept after exit)
  postgres  the client_records table (run "migrate" first, or let the CLI apply it)
  redis     keys under record:<namespace>:*`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
		}
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cfg = config.FromEnv()
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", cfg.StorefrontURL, "Storefront base URL (or set STOREFRONT_URL)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", cfg.RecordStore, "Record store: jar, postgres or redis (or set RECORD_STORE)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", cfg.RecordNamespace, "Record namespace for postgres and redis stores")

	rootCmd.AddCommand(cartCmd)
	rootCmd.AddCommand(wishlistCmd)
	rootCmd.AddCommand(variantsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session is what every network command needs: the record store and an API client that
// sends its records.
type session struct {
	store  record.Store
	client *apiclient.Client
	close  func()
}

func openSession(ctx context.Context) (*session, error) {
	store, closeStore, err := openRecordStore(ctx, storeKind, baseURL)
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(baseURL,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithRecords(store, record.CartKey, record.WishlistKey),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &session{store: store, client: client, close: closeStore}, nil
}

func cliNotifier(cmd *cobra.Command) notify.Notifier {
	return notify.Func(func(_ context.Context, n notify.Notification) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Level, n.Message)
	})
}
