package artifact

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureStore implements output.ArtifactStore on an Azure blob container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure artifact store configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzureStore creates an Azure-backed artifact store.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	var client *azblob.Client
	var err error

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if credErr != nil {
			return nil, credErr
		}
		client, err = azblob.NewClientWithSharedKeyCredential(url, cred, nil)
	}
	if err != nil {
		return nil, err
	}

	return &AzureStore{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}, nil
}

// Upload implements output.ArtifactStore.
func (s *AzureStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	blobName := path.Join(s.prefix, key)
	if _, err := s.client.UploadFile(ctx, s.container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("uploading to azure: %w", err)
	}
	return fmt.Sprintf("azblob://%s/%s", s.container, blobName), nil
}

// Name implements output.ArtifactStore.
func (s *AzureStore) Name() string { return "azure" }
