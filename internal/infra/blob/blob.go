// Package blob stores task evidence photos. Three drivers are provided: a
// local filesystem store (default), an S3-compatible store, and an in-memory
// store for tests. The URL carried by each stored object is what gets
// recorded on the TaskEvidence entity.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Driver identifies a concrete photo storage backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem driver (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3 / MinIO compatible driver.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory driver (tests).
	DriverMemory Driver = "memory"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("blob: object not found")

// Info describes a stored photo.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"sizeBytes"`
	ContentType  string    `json:"contentType,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
}

// Store is the photo storage contract shared by all drivers.
type Store interface {
	// Put writes a new object; writing an existing key fails.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	// Get returns object metadata and content.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns object metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes the object, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	Driver() Driver
}

// EvidenceKey builds a collision-free object key scoped to a task, keeping
// the original file extension so content type survives round trips.
func EvidenceKey(taskID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("tasks/%s/%s%s", taskID, uuid.NewString(), ext)
}

// Open selects a Store implementation from the environment.
//
//	FIELDOPS_BLOB_DRIVER: fs|s3|memory (default fs)
//	FIELDOPS_BLOB_FS_ROOT: directory root when driver=fs (default ./evidencedata)
//	(S3 specific variables documented in s3.go)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("FIELDOPS_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("FIELDOPS_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
