// Package providers holds the named provider registry: small, fixed
// records of endpoint overrides selected by --provider and turned into an
// objectstore.ObjectStore by the CLI entrypoint.
package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/s3fs-fuse/s3vfs-go/internal/credentials"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
	"github.com/s3fs-fuse/s3vfs-go/internal/s3client"
)

// Backend names the storage engine a Provider connects to. Only
// BackendS3 uses the Endpoint/ForcePathStyle/Anonymous/DefaultRegion
// fields and credentials.Credentials; the SQL/document backends take
// their connection details from dedicated CLI flags instead (see
// cmd/s3vfs/main.go) since a DSN or Mongo URI doesn't fit the
// region/endpoint shape S3-compatible providers share.
type Backend string

const (
	BackendS3       Backend = "s3"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Provider is a named ObjectStore construction recipe.
type Provider struct {
	Name           string
	Description    string
	Backend        Backend
	Endpoint       string
	ForcePathStyle bool
	Anonymous      bool
	DefaultRegion  string
}

var registry = []Provider{
	{
		Name:        "aws",
		Backend:     BackendS3,
		Description: "Amazon S3, standard endpoints, credentials required",
	},
	{
		Name:           "sourcecoop",
		Backend:        BackendS3,
		Description:    "source.coop public data, anonymous, path-style",
		Endpoint:       "https://data.source.coop",
		ForcePathStyle: true,
		Anonymous:      true,
		DefaultRegion:  "us-west-2",
	},
	{
		Name:        "postgres",
		Backend:     BackendPostgres,
		Description: "Postgres blob table (read-only), connect via --postgres-dsn/--postgres-table",
	},
	{
		Name:        "mongo",
		Backend:     BackendMongo,
		Description: "MongoDB blob collection (read-only), connect via --mongo-uri/--mongo-database/--mongo-collection",
	},
}

// DefaultName is the provider selected when --provider is not given.
const DefaultName = "aws"

// Lookup returns the named provider, or false if name isn't registered.
func Lookup(name string) (Provider, bool) {
	for _, p := range registry {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// All returns every registered provider, sorted by name.
func All() []Provider {
	out := make([]Provider, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BuildStore constructs the ObjectStore for an S3 provider p from the
// already-resolved creds, applying its endpoint overrides on top of whatever region
// creds already carries. Callers must route BackendPostgres/BackendMongo
// providers to objectstore.NewPostgresStore/NewMongoStore instead, since
// those backends take a DSN or Mongo URI rather than S3 credentials.
func BuildStore(ctx context.Context, p Provider, creds *credentials.Credentials) (objectstore.ObjectStore, error) {
	opts := s3client.Options{
		Region:         creds.Region,
		Endpoint:       p.Endpoint,
		ForcePathStyle: p.ForcePathStyle,
		Anonymous:      p.Anonymous,
	}
	if opts.Region == "" {
		opts.Region = p.DefaultRegion
	}

	client, err := s3client.NewClient(ctx, creds, opts)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", p.Name, err)
	}
	return client, nil
}
