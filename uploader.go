package bqathena

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/samuelzaleta/bigquery-athena/session"
)

const csvContentType = "text/csv; charset=utf-8"

// Uploader stores a file in blob storage and returns its fully qualified path.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) (string, error)
}

// s3API is the part of the S3 client the uploader uses.
type s3API interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Uploader struct {
	client s3API
	bucket string
}

func newS3Uploader(client s3API, bucket string) Uploader {
	return &s3Uploader{client: client, bucket: bucket}
}

func (u *s3Uploader) Upload(ctx context.Context, key string, body []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(csvContentType),
	})
	if err != nil {
		return "", xerrors.Errorf("failed to put s3://%s/%s: %w", u.bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}

type gcsUploader struct {
	storage *storage.Client
	bucket  string
}

func newGCSUploader(ctx context.Context, bucket string) (Uploader, error) {
	s, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to build storage client for %s: %w", bucket, err)
	}

	return &gcsUploader{storage: s, bucket: bucket}, nil
}

func (u *gcsUploader) Upload(ctx context.Context, key string, body []byte) (string, error) {
	w := u.storage.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = csvContentType

	if _, err := w.Write(body); err != nil {
		w.Close()
		return "", xerrors.Errorf("failed to write gs://%s/%s: %w", u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("failed to close gs://%s/%s: %w", u.bucket, key, err)
	}

	return fmt.Sprintf("gs://%s/%s", u.bucket, key), nil
}

// sink serializes sessions and hands them to the uploaders.
type sink struct {
	primary Uploader
	archive Uploader
}

// write uploads sessions as CSV under key. It returns the primary object path
// and the archive path, both empty when there is nothing to write.
func (s *sink) write(ctx context.Context, key string, sessions []*session.Session) (string, string, error) {
	l := log.Ctx(ctx)

	if len(sessions) == 0 {
		l.Info().Msg("no sessions to upload")
		return "", "", nil
	}

	buf := &bytes.Buffer{}
	if err := session.WriteCSV(buf, sessions); err != nil {
		return "", "", xerrors.Errorf("failed to serialize sessions: %w", err)
	}
	body := buf.Bytes()

	var primary, archive string
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		p, err := s.primary.Upload(ctx, key, body)
		if err != nil {
			return err
		}
		primary = p
		return nil
	})

	if s.archive != nil {
		eg.Go(func() error {
			p, err := s.archive.Upload(ctx, key, body)
			if err != nil {
				return xerrors.Errorf("archive: %w", err)
			}
			archive = p
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return "", "", err
	}

	l.Info().Str("object", primary).Str("archive", archive).Int("bytes", len(body)).Msg("uploaded sessions")

	return primary, archive, nil
}
