// Command s3vfs is the interactive shell entrypoint: it resolves
// credentials and a provider, constructs the S3-backed store and its
// caches, and drives the REPL on stdin/stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/s3fs-fuse/s3vfs-go/internal/cache"
	"github.com/s3fs-fuse/s3vfs-go/internal/credentials"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/providers"
	"github.com/s3fs-fuse/s3vfs-go/internal/shell"
	"github.com/s3fs-fuse/s3vfs-go/internal/shell/commands"
)

// connFlags holds the non-S3 backends' connection details, populated only
// when --provider selects one of them.
type connFlags struct {
	postgresDSN   string
	postgresTable string

	mongoURI        string
	mongoDatabase   string
	mongoCollection string
}

var log = logrus.WithField("component", "main")

func main() {
	os.Exit(run())
}

func run() int {
	var providerName string
	var listProviders bool
	var conn connFlags

	root := &cobra.Command{
		Use:           "s3sh",
		Short:         "Interactive shell over an S3-compatible bucket, with archive descent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().StringVar(&providerName, "provider", providers.DefaultName, "named provider config to connect through")
	root.Flags().BoolVar(&listProviders, "list-providers", false, "print registered providers and exit")
	root.Flags().StringVar(&conn.postgresDSN, "postgres-dsn", "", "Postgres connection string (--provider postgres)")
	root.Flags().StringVar(&conn.postgresTable, "postgres-table", "s3vfs_blobs", "Postgres table holding blobs (--provider postgres)")
	root.Flags().StringVar(&conn.mongoURI, "mongo-uri", "", "MongoDB connection URI (--provider mongo)")
	root.Flags().StringVar(&conn.mongoDatabase, "mongo-database", "s3vfs", "MongoDB database holding the blob collection (--provider mongo)")
	root.Flags().StringVar(&conn.mongoCollection, "mongo-collection", "blobs", "MongoDB collection holding blobs (--provider mongo)")

	exitCode := shell.ExitOK
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if listProviders {
			printProviders(cmd.OutOrStdout())
			return nil
		}
		exitCode = runShell(providerName, conn)
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return shell.ExitUsage
	}
	return exitCode
}

func printProviders(out io.Writer) {
	for _, p := range providers.All() {
		fmt.Fprintf(out, "%-12s %s\n", p.Name, p.Description)
	}
}

func runShell(providerName string, conn connFlags) int {
	provider, ok := providers.Lookup(providerName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown provider: %s\n", providerName)
		return shell.ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := buildStore(ctx, provider, conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return shell.ExitRuntime
	}

	caches, err := cache.DefaultManager()
	if err != nil {
		log.WithError(err).Error("failed to construct cache manager")
		fmt.Fprintln(os.Stderr, err)
		return shell.ExitRuntime
	}

	state := shell.NewState(store, caches)
	caches.GetCompletionCache().SetFetch(state.CompletionFetch())

	dispatcher := shell.NewDispatcher(state)
	dispatcher.Register(
		commands.Ls{}, commands.Cd{}, commands.Cat{}, commands.Pwd{}, commands.Stat{},
	)

	interactive := shell.IsTerminal(os.Stdin)
	historyFile := openHistoryFile()
	if historyFile != nil {
		defer historyFile.Close()
	}

	var historyWriter io.Writer
	if historyFile != nil {
		historyWriter = historyFile
	}
	code := shell.Run(ctx, dispatcher, os.Stdin, os.Stdout, os.Stderr, interactive, historyWriter)
	if ctx.Err() != nil {
		return shell.ExitInterrupted
	}
	return code
}

// buildStore constructs the ObjectStore for provider, taking the S3 path
// through providers.BuildStore or, for the SQL/document backends, dialing
// out with the connection details passed on the command line.
func buildStore(ctx context.Context, provider providers.Provider, conn connFlags) (objectstore.ObjectStore, error) {
	switch provider.Backend {
	case providers.BackendPostgres:
		if conn.postgresDSN == "" {
			return nil, fmt.Errorf("--provider postgres requires --postgres-dsn")
		}
		return objectstore.NewPostgresStore(conn.postgresDSN, conn.postgresTable)
	case providers.BackendMongo:
		if conn.mongoURI == "" {
			return nil, fmt.Errorf("--provider mongo requires --mongo-uri")
		}
		return objectstore.NewMongoStore(ctx, conn.mongoURI, conn.mongoDatabase, conn.mongoCollection)
	default:
		creds, err := loadCredentials(ctx, provider)
		if err != nil {
			return nil, err
		}
		return providers.BuildStore(ctx, provider, creds)
	}
}

// loadCredentials resolves credentials for provider, skipping resolution
// entirely for anonymous providers such as sourcecoop.
func loadCredentials(ctx context.Context, provider providers.Provider) (*credentials.Credentials, error) {
	creds := credentials.NewCredentials()
	if provider.Anonymous {
		return creds, nil
	}

	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		if err := creds.LoadFromProfile(ctx, profile); err == nil {
			return creds, nil
		}
	}
	if err := creds.LoadFromEnvironment(); err != nil {
		return nil, fmt.Errorf("no usable AWS credentials: %w", err)
	}
	return creds, nil
}

// openHistoryFile opens (creating if needed) the command history file at
// the user's cache directory. A failure to open it is not fatal; the
// shell just runs without history persistence. There's no line-editor
// library in play here (arrow-key recall isn't wired), so this is a
// stdlib-only append log of executed lines rather than a readline history
// file format.
func openHistoryFile() *os.File {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil
	}
	dir = filepath.Join(dir, "s3vfs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "history"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}
