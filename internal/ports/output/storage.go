// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
)

// ObjectStorage is a remote dataset store mirrored into the workspace.
// Keys are slash-separated paths relative to the store root.
type ObjectStorage interface {
	// List returns the dataset files (.geojson, .json, .shp, .zip) of the
	// store. Shapefile sidecars are not listed but can be downloaded.
	List(ctx context.Context) ([]StorageObject, error)

	// Download copies an object to a local file.
	Download(ctx context.Context, key string, dest string) error

	// GetReader opens an object for streaming.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Upload publishes a local file under key.
	Upload(ctx context.Context, src string, key string) error
}

// StorageObject describes a stored dataset file.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified int64 // Unix seconds
	ETag         string
}

// StorageType names a storage backend in configuration.
type StorageType string

// Storage backends.
const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)
