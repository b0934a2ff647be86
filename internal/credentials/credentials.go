// Package credentials resolves AWS-style credentials and endpoint settings
// from environment variables, a passwd-style file, or the shared AWS config
// files, mirroring the environment surface spec.md §6 requires.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
)

// Credentials holds resolved AWS credentials and region/endpoint hints.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Endpoint        string
	Profile         string
}

// NewCredentials creates an empty Credentials.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// LoadFromPasswdFile loads credentials from a passwd file in format
// ACCESS_KEY:SECRET_KEY, as accepted by the teacher's --passwd_file flag.
func (c *Credentials) LoadFromPasswdFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read passwd file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	parts := strings.Split(content, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid passwd file format, expected ACCESS_KEY:SECRET_KEY")
	}

	c.AccessKeyID = strings.TrimSpace(parts[0])
	c.SecretAccessKey = strings.TrimSpace(parts[1])
	return nil
}

// LoadFromEnvironment loads credentials and region/endpoint settings from
// the environment variables spec.md §6 names.
func (c *Credentials) LoadFromEnvironment() error {
	c.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	c.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	c.SessionToken = os.Getenv("AWS_SESSION_TOKEN")

	if region := os.Getenv("AWS_REGION"); region != "" {
		c.Region = region
	} else if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		c.Region = region
	}
	c.Endpoint = os.Getenv("AWS_ENDPOINT_URL")
	c.Profile = os.Getenv("AWS_PROFILE")

	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return nil
}

// LoadFromProfile resolves credentials via the shared AWS config/credentials
// files (~/.aws/credentials, ~/.aws/config) for the named profile, using the
// SDK's own shared-config loader rather than a hand-rolled INI parser.
func (c *Credentials) LoadFromProfile(ctx context.Context, profile string) error {
	opts := []func(*config.LoadOptions) error{}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load shared AWS config: %w", err)
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve credentials for profile %q: %w", profile, err)
	}
	c.AccessKeyID = creds.AccessKeyID
	c.SecretAccessKey = creds.SecretAccessKey
	c.SessionToken = creds.SessionToken
	c.Region = cfg.Region
	c.Profile = profile
	return nil
}

// IsValid reports whether both the access key and secret are set.
func (c *Credentials) IsValid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}
