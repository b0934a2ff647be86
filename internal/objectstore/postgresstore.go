package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresStore is an ObjectStore backed by a single Postgres table holding
// blobs keyed by (bucket, path), adapted from the teacher's FUSE-oriented
// PostgresBackend into the read-mostly port: no Write/Delete/Rename, since
// this shell never writes to storage.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore opens connStr and ensures table exists with the blob
// schema the store expects.
func NewPostgresStore(connStr, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, New(KindInternal, "NewPostgresStore", "", fmt.Errorf("connect: %w", err))
	}
	s := &PostgresStore{db: db, table: table}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, New(KindInternal, "NewPostgresStore", "", fmt.Errorf("init schema: %w", err))
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			bucket VARCHAR(255) NOT NULL,
			path VARCHAR(4096) NOT NULL,
			data BYTEA,
			size BIGINT NOT NULL DEFAULT 0,
			content_type VARCHAR(255),
			last_modified TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (bucket, path)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_prefix ON %s(bucket, path text_pattern_ops);
	`, s.table, s.table, s.table)
	_, err := s.db.Exec(query)
	return err
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT bucket FROM %s ORDER BY bucket", s.table))
	if err != nil {
		return nil, New(KindNetworkError, "ListBuckets", "", err)
	}
	defer rows.Close()

	var out []BucketInfo
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, New(KindInternal, "ListBuckets", "", err)
		}
		out = append(out, BucketInfo{Name: name})
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPrefix(ctx context.Context, bucket, prefix, delim, continuation string) (ListPrefixResult, error) {
	query := fmt.Sprintf("SELECT path, size, last_modified FROM %s WHERE bucket = $1 AND path LIKE $2 ORDER BY path", s.table)
	rows, err := s.db.QueryContext(ctx, query, bucket, escapeLike(prefix)+"%")
	if err != nil {
		return ListPrefixResult{}, New(KindNetworkError, "ListPrefix", bucket, err)
	}
	defer rows.Close()

	prefixSet := map[string]bool{}
	var res ListPrefixResult
	for rows.Next() {
		var oi ObjectInfo
		if err := rows.Scan(&oi.Key, &oi.Size, &oi.LastModified); err != nil {
			return ListPrefixResult{}, New(KindInternal, "ListPrefix", bucket, err)
		}
		rest := oi.Key[len(prefix):]
		if delim != "" {
			if idx := strings.Index(rest, delim); idx >= 0 {
				cp := prefix + rest[:idx+len(delim)]
				if !prefixSet[cp] {
					prefixSet[cp] = true
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
				}
				continue
			}
		}
		res.Objects = append(res.Objects, oi)
	}
	sort.Strings(res.CommonPrefixes)
	return res, rows.Err()
}

func (s *PostgresStore) Head(ctx context.Context, bucket, key string) (HeadInfo, error) {
	var size int64
	var contentType sql.NullString
	query := fmt.Sprintf("SELECT size, content_type FROM %s WHERE bucket = $1 AND path = $2", s.table)
	err := s.db.QueryRowContext(ctx, query, bucket, key).Scan(&size, &contentType)
	if err == sql.ErrNoRows {
		return HeadInfo{}, New(KindNotFound, "Head", bucket+"/"+key, err)
	}
	if err != nil {
		return HeadInfo{}, New(KindNetworkError, "Head", bucket+"/"+key, err)
	}
	return HeadInfo{Size: size, ContentType: contentType.String}, nil
}

func (s *PostgresStore) readData(ctx context.Context, bucket, key string) ([]byte, error) {
	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE bucket = $1 AND path = $2", s.table)
	err := s.db.QueryRowContext(ctx, query, bucket, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, New(KindNotFound, "Read", bucket+"/"+key, err)
	}
	if err != nil {
		return nil, New(KindNetworkError, "Read", bucket+"/"+key, err)
	}
	return data, nil
}

func (s *PostgresStore) GetRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	data, err := s.readData(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	n := int64(len(data))
	if start < 0 && end == -1 {
		start = n + start
		if start < 0 {
			start = 0
		}
		end = n - 1
	} else if end == -1 {
		end = n - 1
	}
	if start < 0 || start >= n || end < start {
		return nil, New(KindProtocolError, "GetRange", bucket+"/"+key, nil)
	}
	if end >= n {
		end = n - 1
	}
	return io.NopCloser(strings.NewReader(string(data[start : end+1]))), nil
}

func (s *PostgresStore) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, err := s.readData(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

var _ ObjectStore = (*PostgresStore)(nil)
