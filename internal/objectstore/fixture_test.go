package objectstore

import (
	"context"
	"io"
	"testing"
)

func TestFixtureListPrefixDelimited(t *testing.T) {
	f := NewFixture()
	f.Put("bucket", "logs/2024/a.txt", []byte("a"))
	f.Put("bucket", "logs/2024/b.txt", []byte("b"))
	f.Put("bucket", "logs/2023/c.txt", []byte("c"))
	f.Put("bucket", "readme.txt", []byte("root"))

	res, err := f.ListPrefix(context.Background(), "bucket", "", "/", "")
	if err != nil {
		t.Fatalf("ListPrefix: %v", err)
	}
	if len(res.CommonPrefixes) != 1 || res.CommonPrefixes[0] != "logs/" {
		t.Errorf("expected common prefix logs/, got %v", res.CommonPrefixes)
	}
	if len(res.Objects) != 1 || res.Objects[0].Key != "readme.txt" {
		t.Errorf("expected only readme.txt as a direct object, got %v", res.Objects)
	}
}

func TestFixtureGetRangeSuffix(t *testing.T) {
	f := NewFixture()
	f.Put("bucket", "key", []byte("0123456789"))

	rc, err := f.GetRange(context.Background(), "bucket", "key", -3, -1)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "789" {
		t.Errorf("expected suffix '789', got %q", data)
	}
}

func TestFixtureHeadNotFound(t *testing.T) {
	f := NewFixture()
	_, err := f.Head(context.Background(), "bucket", "missing")
	if !Is(err, KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}
