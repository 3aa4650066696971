// Package blob re-exports the blob abstractions and wires backend selection
// for stable internal imports.
package blob

import (
	"context"
	"fmt"
	"os"

	"sweepcore/internal/blob/core"
	infraFS "sweepcore/internal/infra/blob/fs"
	memorystore "sweepcore/internal/infra/blob/memory"
	infraS3 "sweepcore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// S3Config re-exports the S3 construction parameters.
type S3Config = infraS3.Config

// NewFilesystem constructs a filesystem-backed Store rooted at the provided path.
func NewFilesystem(root string) (Store, error) { return infraFS.New(root) }

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewS3 constructs an S3-backed Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// Open selects a blob.Store implementation using environment variables.
//
//	SWEEPCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	SWEEPCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./artifacts)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("SWEEPCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("SWEEPCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return infraS3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
