package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/craftpage/mediavault/internal/config"
)

// S3Provider stores payloads in an S3-compatible bucket using the same
// payload-plus-sidecar layout as the filesystem backend. A custom endpoint
// makes it usable against MinIO.
type S3Provider struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Provider builds the client from static credentials when configured,
// falling back to the ambient AWS credential chain.
func NewS3Provider(ctx context.Context, log *slog.Logger, cfg config.S3Config) (*S3Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrVaultUnavailable, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Provider{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger: log.With(slog.String("service", "vault_s3")),
	}, nil
}

func (p *S3Provider) payloadKey(id string) string {
	return path.Join(p.prefix, shardDir(id), id+".bin")
}

func (p *S3Provider) sidecarKey(id string) string {
	return path.Join(p.prefix, shardDir(id), id+".json")
}

func (p *S3Provider) Put(ctx context.Context, entry Entry, payload []byte) error {
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("entry id is required")
	}
	entry.ByteSize = int64(len(payload))
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.payloadKey(entry.ID)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(entry.Mime),
	})
	if err != nil {
		return fmt.Errorf("%w: put payload: %v", ErrVaultUnavailable, err)
	}

	sidecar, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.sidecarKey(entry.ID)),
		Body:        bytes.NewReader(sidecar),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: put sidecar: %v", ErrVaultUnavailable, err)
	}
	return nil
}

func (p *S3Provider) Open(ctx context.Context, id string) ([]byte, Entry, error) {
	entry, err := p.readSidecar(ctx, p.sidecarKey(id))
	if err != nil {
		return nil, Entry{}, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.payloadKey(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, Entry{}, ErrEntryNotFound
		}
		return nil, Entry{}, fmt.Errorf("get payload: %w", err)
	}
	defer out.Body.Close()
	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("read payload: %w", err)
	}
	return payload, entry, nil
}

func (p *S3Provider) Delete(ctx context.Context, id string) error {
	for _, key := range []string{p.sidecarKey(id), p.payloadKey(id)} {
		_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if err != nil && !isNoSuchKey(err) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func (p *S3Provider) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list objects: %v", ErrVaultUnavailable, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			entry, err := p.readSidecar(ctx, key)
			if err != nil {
				p.logger.Warn("skipping unreadable vault sidecar", slog.String("key", key), slog.Any("error", err))
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (p *S3Provider) AccessPath(id string) string {
	return "s3://" + p.bucket + "/" + p.payloadKey(id)
}

func (p *S3Provider) readSidecar(ctx context.Context, key string) (Entry, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("get sidecar: %w", err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("read sidecar: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode sidecar: %w", err)
	}
	return entry, nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
