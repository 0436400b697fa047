// Package storage reads blob tags and enumerates containers across object stores.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// BlobTagSet maps tag names to values for a single blob. It is fetched fresh on
// every request and never cached.
type BlobTagSet map[string]string

// Count returns the number of tags on the blob.
func (s BlobTagSet) Count() int {
	return len(s)
}

// Get returns the tag value and whether it was present.
func (s BlobTagSet) Get(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// TagReader fetches the tag set of the blob addressed by uri.
type TagReader interface {
	GetTags(ctx context.Context, uri string) (BlobTagSet, error)
}

// ContainerLister enumerates top-level containers (buckets) of an account.
type ContainerLister interface {
	ListContainers(ctx context.Context) ([]string, error)
}

// Provider identifies the object store a URI belongs to.
type Provider string

const (
	ProviderAzure Provider = "azure"
	ProviderGCS   Provider = "gcs"
	ProviderS3    Provider = "s3"
)

// ProviderForURI infers the store from the URI scheme. gs:// addresses GCS,
// s3:// addresses S3, anything else served over http(s) is treated as Azure
// Blob Storage.
func ProviderForURI(uri string) (Provider, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse blob uri: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "gs":
		return ProviderGCS, nil
	case "s3":
		return ProviderS3, nil
	case "https", "http":
		if u.Host == "" {
			return "", fmt.Errorf("blob uri %q has no host", uri)
		}
		return ProviderAzure, nil
	default:
		return "", fmt.Errorf("unsupported blob uri scheme %q", u.Scheme)
	}
}

// Router dispatches GetTags to the reader registered for the URI's provider.
type Router struct {
	readers map[Provider]TagReader
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{readers: make(map[Provider]TagReader)}
}

// Register binds a reader to a provider, replacing any previous binding.
func (r *Router) Register(p Provider, reader TagReader) *Router {
	r.readers[p] = reader
	return r
}

// GetTags implements TagReader.
func (r *Router) GetTags(ctx context.Context, uri string) (BlobTagSet, error) {
	p, err := ProviderForURI(uri)
	if err != nil {
		return nil, err
	}
	reader, ok := r.readers[p]
	if !ok {
		return nil, fmt.Errorf("no tag reader configured for %s blobs", p)
	}
	return reader.GetTags(ctx, uri)
}
