package blob

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "out")
	store, err := Open(ctx, Config{Root: root})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs default, got %s", store.Driver())
	}
	if _, err := store.Put(ctx, "plans/a.json", strings.NewReader("{}"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("open memory: %v", err)
	}

	t.Setenv("AWS_CA_BUNDLE", "")
	s3Store, err := Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "plates", AccessKeyID: "AKID", SecretAccessKey: "s"}})
	if err != nil || s3Store.Driver() != DriverS3 {
		t.Fatalf("open s3: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
