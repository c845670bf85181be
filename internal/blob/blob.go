// Package blob selects and constructs the artifact storage backend used
// for matrix exports.
package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"connmatrix/internal/infra/blob/core"
	fsblob "connmatrix/internal/infra/blob/fs"
	memblob "connmatrix/internal/infra/blob/memory"
	s3blob "connmatrix/internal/infra/blob/s3"
)

// Re-exported shared types so callers avoid importing the core package.
type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// ErrUnsupported mirrors core.ErrUnsupported.
var ErrUnsupported = core.ErrUnsupported

// Open constructs a Store from process environment. CONNMATRIX_BLOB_DRIVER
// selects the backend (fs, s3, memory); unset defaults to fs.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("CONNMATRIX_BLOB_DRIVER")))
	switch Driver(driver) {
	case DriverFilesystem, "":
		return fsblob.OpenFromEnv()
	case DriverS3:
		return s3blob.OpenFromEnv(ctx)
	case DriverMemory:
		return memblob.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", driver)
	}
}
