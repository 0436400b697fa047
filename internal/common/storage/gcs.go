package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"legal-rag-functions/internal/common/auth"
	"legal-rag-functions/internal/common/errors"
)

// GCSTagReader exposes custom object metadata of Cloud Storage objects as tags.
type GCSTagReader struct {
	client *gcs.Client
}

// NewGCSTagReader wraps an existing storage client.
func NewGCSTagReader(client *gcs.Client) *GCSTagReader {
	return &GCSTagReader{client: client}
}

// GetTags implements TagReader for gs://bucket/object URIs.
func (r *GCSTagReader) GetTags(ctx context.Context, uri string) (BlobTagSet, error) {
	bucket, object, err := parseGCSURI(uri)
	if err != nil {
		return nil, errors.NewBlobTagsFetchFailedError(uri, err)
	}

	attrs, err := r.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return nil, classifyGCSError(uri, err)
	}

	tags := make(BlobTagSet, len(attrs.Metadata))
	for k, v := range attrs.Metadata {
		tags[k] = v
	}
	return tags, nil
}

func parseGCSURI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	object := strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return "", "", fmt.Errorf("gs uri %q has no object name", uri)
	}
	return u.Host, object, nil
}

func classifyGCSError(uri string, err error) error {
	if stderrors.Is(err, gcs.ErrObjectNotExist) || stderrors.Is(err, gcs.ErrBucketNotExist) {
		return errors.NewBlobNotFoundError(uri, err)
	}
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) && auth.IsAuthStatus(apiErr.Code) {
		return errors.NewAuthenticationError("cloud storage", err)
	}
	if stderrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return errors.NewBlobNotFoundError(uri, err)
	}
	return errors.NewBlobTagsFetchFailedError(uri, err)
}

// GCSBucketLister enumerates the buckets of a Google Cloud project.
type GCSBucketLister struct {
	client    *gcs.Client
	projectID string
}

// NewGCSBucketLister creates a lister for projectID.
func NewGCSBucketLister(client *gcs.Client, projectID string) *GCSBucketLister {
	return &GCSBucketLister{client: client, projectID: projectID}
}

// ListContainers implements ContainerLister.
func (l *GCSBucketLister) ListContainers(ctx context.Context) ([]string, error) {
	var names []string
	it := l.client.Buckets(ctx, l.projectID)
	for {
		attrs, err := it.Next()
		if stderrors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return names, errors.NewContainerListingFailedError(err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
