package output

import "context"

// ArtifactStore publishes finished mosaics to a delivery location such
// as a local directory, an S3 bucket, or an Azure container.
type ArtifactStore interface {
	// Upload copies the file at localPath to the store under key and
	// returns a reference a consumer can use to retrieve it.
	Upload(ctx context.Context, localPath, key string) (string, error)

	// Name identifies the backend in logs.
	Name() string
}
