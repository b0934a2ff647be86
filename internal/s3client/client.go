// Package s3client implements the objectstore.ObjectStore port against AWS
// S3 (and S3-compatible endpoints such as LocalStack or source.coop).
package s3client

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/s3fs-fuse/s3vfs-go/internal/credentials"
	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

// Client is an objectstore.ObjectStore backed by the AWS SDK v2 S3 client.
type Client struct {
	region   string
	endpoint string
	s3Client *s3.Client
	log      *logrus.Entry
}

// Options configures NewClient beyond the bare region/endpoint pair.
type Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
	Anonymous      bool
}

// NewClient builds a Client from resolved credentials and endpoint options.
// If opts.Anonymous is set, creds may be nil and requests are signed
// anonymously (only works against public buckets).
func NewClient(ctx context.Context, creds *credentials.Credentials, opts Options) (*Client, error) {
	log := logrus.WithField("component", "s3client")

	cfgOptions := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		cfgOptions = append(cfgOptions, config.WithRegion(opts.Region))
	}
	if !opts.Anonymous && creds != nil && creds.IsValid() {
		cfgOptions = append(cfgOptions, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, cfgOptions...)
	if err != nil {
		return nil, objectstore.New(objectstore.KindAuthError, "NewClient", "", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = opts.ForcePathStyle
		})
	}
	if opts.Anonymous {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.Credentials = aws.AnonymousCredentials{}
		})
	}

	return &Client{
		region:   opts.Region,
		endpoint: opts.Endpoint,
		s3Client: s3.NewFromConfig(cfg, s3Opts...),
		log:      log,
	}, nil
}

// wrapAWSErr classifies an AWS SDK error into the core's error taxonomy.
func wrapAWSErr(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	var nf *types.NoSuchKey
	var nb *types.NoSuchBucket
	if asErr(err, &nf) || asErr(err, &nb) {
		return objectstore.New(objectstore.KindNotFound, op, bucket+"/"+key, err)
	}
	return objectstore.New(objectstore.KindNetworkError, op, bucket+"/"+key, err)
}

func asErr[T error](err error, target *T) bool {
	for err != nil {
		if t, ok := err.(T); ok {
			*target = t
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ListBuckets implements objectstore.ObjectStore.
func (c *Client) ListBuckets(ctx context.Context) ([]objectstore.BucketInfo, error) {
	out, err := c.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, objectstore.New(objectstore.KindNetworkError, "ListBuckets", "", err)
	}
	buckets := make([]objectstore.BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		bi := objectstore.BucketInfo{Name: aws.ToString(b.Name)}
		if b.CreationDate != nil {
			bi.CreationDate = *b.CreationDate
		}
		buckets = append(buckets, bi)
	}
	return buckets, nil
}

// ListPrefix implements objectstore.ObjectStore, mapping to ListObjectsV2
// with Delimiter=delim.
func (c *Client) ListPrefix(ctx context.Context, bucket, prefix, delim, continuation string) (objectstore.ListPrefixResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if delim != "" {
		input.Delimiter = aws.String(delim)
	}
	if continuation != "" {
		input.ContinuationToken = aws.String(continuation)
	}

	out, err := c.s3Client.ListObjectsV2(ctx, input)
	if err != nil {
		return objectstore.ListPrefixResult{}, wrapAWSErr("ListPrefix", bucket, prefix, err)
	}

	res := objectstore.ListPrefixResult{
		IsTruncated: aws.ToBool(out.IsTruncated),
	}
	for _, cp := range out.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	for _, obj := range out.Contents {
		oi := objectstore.ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			oi.LastModified = *obj.LastModified
		}
		res.Objects = append(res.Objects, oi)
	}
	if out.NextContinuationToken != nil {
		res.NextContinuation = *out.NextContinuationToken
	}
	return res, nil
}

// Head implements objectstore.ObjectStore.
func (c *Client) Head(ctx context.Context, bucket, key string) (objectstore.HeadInfo, error) {
	out, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return objectstore.HeadInfo{}, wrapAWSErr("Head", bucket, key, err)
	}
	return objectstore.HeadInfo{
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// GetRange implements objectstore.ObjectStore. start<0 with end==-1 means a
// suffix range (the last -start bytes); end==-1 with start>=0 means "to EOF".
func (c *Client) GetRange(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}

	var rangeHeader string
	switch {
	case start < 0 && end == -1:
		rangeHeader = fmt.Sprintf("bytes=%d", start)
	case end == -1:
		rangeHeader = fmt.Sprintf("bytes=%d-", start)
	default:
		rangeHeader = fmt.Sprintf("bytes=%d-%d", start, end)
	}
	input.Range = aws.String(rangeHeader)

	out, err := c.s3Client.GetObject(ctx, input)
	if err != nil {
		return nil, wrapAWSErr("GetRange", bucket, key, err)
	}
	return out.Body, nil
}

// GetFull implements objectstore.ObjectStore.
func (c *Client) GetFull(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapAWSErr("GetFull", bucket, key, err)
	}
	return out.Body, nil
}

var _ objectstore.ObjectStore = (*Client)(nil)
