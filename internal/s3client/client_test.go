package s3client

import (
	"context"
	"testing"

	"github.com/s3fs-fuse/s3vfs-go/internal/credentials"
)

func TestNewClientAnonymous(t *testing.T) {
	client, err := NewClient(context.Background(), nil, Options{Region: "us-east-1", Anonymous: true})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", client.region)
	}
}

func TestNewClientWithCredentials(t *testing.T) {
	creds := &credentials.Credentials{
		AccessKeyID:     "AKIA_TEST",
		SecretAccessKey: "secret",
		Region:          "us-west-2",
	}
	client, err := NewClient(context.Background(), creds, Options{Region: "us-west-2", Endpoint: "http://localhost:4566", ForcePathStyle: true})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.endpoint != "http://localhost:4566" {
		t.Errorf("expected endpoint to be preserved, got %q", client.endpoint)
	}
}
