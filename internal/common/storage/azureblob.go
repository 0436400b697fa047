package storage

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"legal-rag-functions/internal/common/auth"
	"legal-rag-functions/internal/common/errors"
)

// AzureTagReader reads index tags from Azure Blob Storage.
type AzureTagReader struct {
	cred    azcore.TokenCredential
	options *blob.ClientOptions
}

// NewAzureTagReader creates a reader authenticating with cred. A nil cred
// issues anonymous requests, which only works against SAS URIs or emulators.
func NewAzureTagReader(cred azcore.TokenCredential, options *blob.ClientOptions) *AzureTagReader {
	return &AzureTagReader{cred: cred, options: options}
}

// GetTags implements TagReader.
func (r *AzureTagReader) GetTags(ctx context.Context, uri string) (BlobTagSet, error) {
	client, err := r.newClient(uri)
	if err != nil {
		return nil, errors.NewBlobTagsFetchFailedError(uri, err)
	}

	resp, err := client.GetTags(ctx, nil)
	if err != nil {
		return nil, classifyAzureError(uri, err)
	}

	tags := make(BlobTagSet, len(resp.BlobTagSet))
	for _, tag := range resp.BlobTagSet {
		if tag == nil || tag.Key == nil {
			continue
		}
		value := ""
		if tag.Value != nil {
			value = *tag.Value
		}
		tags[*tag.Key] = value
	}
	return tags, nil
}

func (r *AzureTagReader) newClient(uri string) (*blob.Client, error) {
	if r.cred == nil {
		return blob.NewClientWithNoCredential(uri, r.options)
	}
	return blob.NewClient(uri, r.cred, r.options)
}

func classifyAzureError(uri string, err error) error {
	switch {
	case auth.IsAuthError(err):
		return errors.NewAuthenticationError("blob storage", err)
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return errors.NewBlobNotFoundError(uri, err)
	default:
		return errors.NewBlobTagsFetchFailedError(uri, err)
	}
}

// AzureContainerLister enumerates the containers of one storage account.
type AzureContainerLister struct {
	client *azblob.Client
}

// NewAzureContainerLister creates a lister for the account at serviceURL.
func NewAzureContainerLister(serviceURL string, cred azcore.TokenCredential, options *azblob.ClientOptions) (*AzureContainerLister, error) {
	var (
		client *azblob.Client
		err    error
	)
	if cred == nil {
		client, err = azblob.NewClientWithNoCredential(serviceURL, options)
	} else {
		client, err = azblob.NewClient(serviceURL, cred, options)
	}
	if err != nil {
		return nil, fmt.Errorf("create blob service client: %w", err)
	}
	return &AzureContainerLister{client: client}, nil
}

// ListContainers implements ContainerLister.
func (l *AzureContainerLister) ListContainers(ctx context.Context) ([]string, error) {
	var names []string
	pager := l.client.NewListContainersPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if auth.IsAuthError(err) {
				return names, errors.NewAuthenticationError("blob storage", err)
			}
			return names, errors.NewContainerListingFailedError(err)
		}
		for _, item := range page.ContainerItems {
			if item != nil && item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}
