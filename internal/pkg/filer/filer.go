package filer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options keeps minio connection config
type Options struct {
	URL    string
	User   string
	Key    string
	Bucket string
	Secure bool
}

// Filer stores audio blobs in minio, keys are "<session id>/<file name>"
type Filer struct {
	client *minio.Client
	bucket string
}

// NewFiler creates a minio backed file storage, makes sure bucket exists
func NewFiler(ctx context.Context, opts Options) (*Filer, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("no URL")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("no bucket")
	}
	cl, err := minio.New(opts.URL, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.User, opts.Key, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	res := &Filer{client: cl, bucket: opts.Bucket}
	exists, err := cl.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("can't check bucket: %w", err)
	}
	if !exists {
		if err := cl.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("can't create bucket: %w", err)
		}
		goapp.Log.Info().Str("bucket", opts.Bucket).Msg("created bucket")
	}
	return res, nil
}

// SaveFile stores reader content under name
func (f *Filer) SaveFile(ctx context.Context, name string, r io.Reader, size int64) error {
	goapp.Log.Debug().Str("name", name).Msg("save file")
	_, err := f.client.PutObject(ctx, f.bucket, name, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("can't save '%s': %w", name, err)
	}
	return nil
}

// LoadFile retrieves a stored file
func (f *Filer) LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	goapp.Log.Debug().Str("name", name).Msg("load file")
	obj, err := f.client.GetObject(ctx, f.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("can't load '%s': %w", name, err)
	}
	return obj, nil
}

// Clean drops all files of one session
func (f *Filer) Clean(ctx context.Context, ID string) error {
	if ID == "" {
		return fmt.Errorf("no ID")
	}
	goapp.Log.Info().Str("ID", ID).Msg("clean files")
	for obj := range f.client.ListObjects(ctx, f.bucket,
		minio.ListObjectsOptions{Prefix: ID + "/", Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("can't list files: %w", obj.Err)
		}
		if err := f.client.RemoveObject(ctx, f.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("can't remove '%s': %w", obj.Key, err)
		}
	}
	return nil
}

// ExpiredIDs returns session IDs whose files are older than provided duration
func (f *Filer) ExpiredIDs(ctx context.Context, expire time.Duration) ([]string, error) {
	deadline := time.Now().Add(-expire)
	seen := map[string]bool{}
	res := []string{}
	for obj := range f.client.ListObjects(ctx, f.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("can't list files: %w", obj.Err)
		}
		id, ok := sessionID(obj.Key)
		if !ok || seen[id] {
			continue
		}
		if obj.LastModified.Before(deadline) {
			seen[id] = true
			res = append(res, id)
		}
	}
	return res, nil
}

func sessionID(key string) (string, bool) {
	i := strings.Index(key, "/")
	if i <= 0 {
		return "", false
	}
	return key[:i], true
}
