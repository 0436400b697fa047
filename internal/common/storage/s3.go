package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"legal-rag-functions/internal/common/errors"
)

// S3API is the part of the S3 client used for tags and bucket listing.
type S3API interface {
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// NewS3Client loads the default AWS credential chain for region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg), nil
}

// S3TagReader reads object tagging of s3://bucket/key URIs.
type S3TagReader struct {
	client S3API
}

func NewS3TagReader(client S3API) *S3TagReader {
	return &S3TagReader{client: client}
}

// GetTags implements TagReader.
func (r *S3TagReader) GetTags(ctx context.Context, uri string) (BlobTagSet, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, errors.NewBlobTagsFetchFailedError(uri, err)
	}

	out, err := r.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(uri, err)
	}

	tags := make(BlobTagSet, len(out.TagSet))
	for _, tag := range out.TagSet {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return tags, nil
}

func parseS3URI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3:// uri: %q", uri)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 uri %q has no object key", uri)
	}
	return u.Host, key, nil
}

func classifyS3Error(uri string, err error) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errors.NewBlobNotFoundError(uri, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return errors.NewAuthenticationError("s3", err)
		}
	}
	return errors.NewBlobTagsFetchFailedError(uri, err)
}

// S3BucketLister enumerates the buckets visible to the AWS credentials.
type S3BucketLister struct {
	client S3API
}

func NewS3BucketLister(client S3API) *S3BucketLister {
	return &S3BucketLister{client: client}
}

// ListContainers implements ContainerLister.
func (l *S3BucketLister) ListContainers(ctx context.Context) ([]string, error) {
	out, err := l.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, errors.NewContainerListingFailedError(err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}
