package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/s3fs-fuse/s3vfs-go/internal/objectstore"
)

func TestCatPlainObject(t *testing.T) {
	store := objectstore.NewFixture()
	store.Put("bucket", "hello.txt", []byte("hello world\n"))
	state := newTestState(t, store)

	var out bytes.Buffer
	if err := (Cat{}).Execute(context.Background(), state, []string{"bucket/hello.txt"}, &out); err != nil {
		t.Fatalf("cat: %v", err)
	}
	if out.String() != "hello world\n" {
		t.Errorf("out = %q, want %q", out.String(), "hello world\n")
	}
}

func TestCatArchiveEntry(t *testing.T) {
	store := objectstore.NewFixture()
	tarBytes := buildTestTar(t, map[string]string{"inner.txt": "archived contents"})
	store.Put("bucket", "a.tar", tarBytes)
	state := newTestState(t, store)

	var out bytes.Buffer
	if err := (Cat{}).Execute(context.Background(), state, []string{"bucket/a.tar/inner.txt"}, &out); err != nil {
		t.Fatalf("cat archive entry: %v", err)
	}
	if out.String() != "archived contents" {
		t.Errorf("out = %q, want %q", out.String(), "archived contents")
	}
}

func TestCatDirectoryFails(t *testing.T) {
	store := objectstore.NewFixture()
	store.Put("bucket", "dir/a.txt", []byte("x"))
	state := newTestState(t, store)

	err := (Cat{}).Execute(context.Background(), state, []string{"bucket/dir"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("cat on a directory: want error")
	}
	if !strings.Contains(err.Error(), "directory") {
		t.Errorf("error = %v, want it to mention 'directory'", err)
	}
}

func TestCatBinaryDataHexDumps(t *testing.T) {
	store := objectstore.NewFixture()
	binary := []byte{0x00, 0x01, 0xff, 0xfe, 0x80}
	store.Put("bucket", "bin.dat", binary)
	state := newTestState(t, store)

	var out bytes.Buffer
	if err := (Cat{}).Execute(context.Background(), state, []string{"bucket/bin.dat"}, &out); err != nil {
		t.Fatalf("cat: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Warning") || !strings.Contains(got, "00000000:") {
		t.Errorf("out = %q, want a hex dump warning and offset header", got)
	}
}

func TestCatNoArgs(t *testing.T) {
	store := objectstore.NewFixture()
	state := newTestState(t, store)

	if err := (Cat{}).Execute(context.Background(), state, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("cat with no args: want usage error")
	}
}
