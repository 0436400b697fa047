package storage

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"legal-rag-functions/internal/common/errors"
)

type fakeReader struct {
	tags  BlobTagSet
	err   error
	calls []string
}

func (f *fakeReader) GetTags(_ context.Context, uri string) (BlobTagSet, error) {
	f.calls = append(f.calls, uri)
	return f.tags, f.err
}

func TestProviderForURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    Provider
		wantErr bool
	}{
		{"https://acct.blob.core.windows.net/c/doc1", ProviderAzure, false},
		{"http://127.0.0.1:10000/devstoreaccount1/c/doc1", ProviderAzure, false},
		{"gs://proceedings/2023/doc1.pdf", ProviderGCS, false},
		{"s3://proceedings/2023/doc1.pdf", ProviderS3, false},
		{"ftp://host/doc", "", true},
		{"https:///nohost", "", true},
		{"not a uri", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ProviderForURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter_DispatchesByScheme(t *testing.T) {
	azure := &fakeReader{tags: BlobTagSet{"CaseNumber": "CV-1"}}
	google := &fakeReader{tags: BlobTagSet{"CaseNumber": "CV-2", "court": "district"}}

	router := NewRouter().Register(ProviderAzure, azure).Register(ProviderGCS, google)

	tags, err := router.GetTags(context.Background(), "https://acct.blob.core.windows.net/c/doc1")
	require.NoError(t, err)
	assert.Equal(t, "CV-1", tags["CaseNumber"])

	tags, err = router.GetTags(context.Background(), "gs://bucket/doc2")
	require.NoError(t, err)
	assert.Equal(t, 2, tags.Count())

	assert.Len(t, azure.calls, 1)
	assert.Len(t, google.calls, 1)
}

func TestRouter_MissingProvider(t *testing.T) {
	router := NewRouter().Register(ProviderAzure, &fakeReader{})

	_, err := router.GetTags(context.Background(), "gs://bucket/doc")
	assert.ErrorContains(t, err, "no tag reader configured for gcs blobs")
}

func TestBlobTagSet_Get(t *testing.T) {
	tags := BlobTagSet{"CaseNumber": "CV-2023-001"}

	v, ok := tags.Get("CaseNumber")
	assert.True(t, ok)
	assert.Equal(t, "CV-2023-001", v)

	_, ok = tags.Get("Court")
	assert.False(t, ok)
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := parseGCSURI("gs://proceedings/2023/case 1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "proceedings", bucket)
	assert.Equal(t, "2023/case 1.pdf", object)

	_, _, err = parseGCSURI("gs://proceedings/")
	assert.Error(t, err)

	_, _, err = parseGCSURI("https://acct.blob.core.windows.net/c/doc")
	assert.Error(t, err)
}

func newBlobServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *blob.ClientOptions) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv, &blob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: srv.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
	}
}

func TestAzureTagReader_GetTags(t *testing.T) {
	srv, opts := newBlobServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/c/doc1", r.URL.Path)
		assert.Equal(t, "tags", r.URL.Query().Get("comp"))

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>` +
			`<Tags><TagSet>` +
			`<Tag><Key>CaseNumber</Key><Value>CV-2023-001</Value></Tag>` +
			`<Tag><Key>Court</Key><Value>District</Value></Tag>` +
			`</TagSet></Tags>`))
	})

	reader := NewAzureTagReader(nil, opts)
	tags, err := reader.GetTags(context.Background(), srv.URL+"/c/doc1")
	require.NoError(t, err)

	assert.Equal(t, BlobTagSet{"CaseNumber": "CV-2023-001", "Court": "District"}, tags)
}

func TestAzureTagReader_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		wantCode  errors.ErrorCode
	}{
		{"blob not found", http.StatusNotFound, "BlobNotFound", errors.ErrCodeBlobNotFound},
		{"container not found", http.StatusNotFound, "ContainerNotFound", errors.ErrCodeBlobNotFound},
		{"forbidden", http.StatusForbidden, "AuthorizationPermissionMismatch", errors.ErrCodeAuthenticationFailed},
		{"bad request", http.StatusBadRequest, "InvalidQueryParameterValue", errors.ErrCodeBlobTagsFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, opts := newBlobServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("x-ms-error-code", tt.errorCode)
				w.WriteHeader(tt.status)
			})

			_, err := NewAzureTagReader(nil, opts).GetTags(context.Background(), srv.URL+"/c/missing")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestClassifyGCSError(t *testing.T) {
	err := classifyGCSError("gs://b/o", stderrors.New("connection refused"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeBlobTagsFetchFailed))

	err = classifyGCSError("gs://b/o", gcs.ErrObjectNotExist)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBlobNotFound))

	err = classifyGCSError("gs://b/o", &googleapi.Error{Code: http.StatusForbidden})
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthenticationFailed))
}
