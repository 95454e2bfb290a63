package artifacts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

const jsonContentType = "application/json"

// ErrNoConnectionString is returned when blob storage is not configured.
var ErrNoConnectionString = errors.New("storage connection string not set")

// BlobStore uploads artifacts to a single Azure Blob Storage container.
type BlobStore struct {
	client    *azblob.Client
	container string
}

// NewBlobStore connects with a storage account connection string. SDK retries
// are disabled so a failed upload costs exactly one attempt.
func NewBlobStore(connectionString, container string) (*BlobStore, error) {
	connectionString = strings.TrimSpace(connectionString)
	if connectionString == "" {
		return nil, ErrNoConnectionString
	}
	if container == "" {
		return nil, errors.New("container name required")
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &BlobStore{client: client, container: container}, nil
}

// Container returns the target container name.
func (s *BlobStore) Container() string {
	return s.container
}

func (s *BlobStore) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, key, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(jsonContentType),
		},
	})
	if err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", s.container, key, err)
	}
	return nil
}
