// Package storage uploads finished images to Cloud Storage for delivery and
// removes them once the chat platform has fetched them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultPublicBaseURL = "https://storage.googleapis.com"
	pngContentType       = "image/png"
)

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errEmptyContent  = errors.New("storage: content is empty")
)

// Object identifies an uploaded image.
type Object struct {
	ID  string // 对象名，删除时使用
	URL string
}

// objectStore 抽象出写入/删除，生产实现基于 *gcs.Client。
type objectStore interface {
	Write(ctx context.Context, bucket, name, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, name string) error
}

// Uploader stores PNG images under <prefix><ulid>.png.
type Uploader struct {
	store      objectStore
	bucket     string
	prefix     string
	publicBase string
	idGen      func() string
}

// Option customises an Uploader.
type Option func(*Uploader)

// WithPrefix sets the object name prefix, eg: "blessing/".
func WithPrefix(p string) Option { return func(u *Uploader) { u.prefix = p } }

// WithPublicBaseURL overrides the host used to build public URLs.
func WithPublicBaseURL(base string) Option {
	return func(u *Uploader) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			u.publicBase = base
		}
	}
}

// WithIDGenerator injects a custom id generator (useful for tests).
func WithIDGenerator(gen func() string) Option {
	return func(u *Uploader) {
		if gen != nil {
			u.idGen = gen
		}
	}
}

// NewUploader constructs an Uploader backed by the provided Cloud Storage client.
func NewUploader(client *gcs.Client, bucket string, opts ...Option) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return newUploader(gcsStore{client: client}, bucket, opts...)
}

func newUploader(store objectStore, bucket string, opts ...Option) (*Uploader, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	u := &Uploader{
		store:      store,
		bucket:     bucket,
		publicBase: DefaultPublicBaseURL,
		idGen:      func() string { return strings.ToLower(ulid.Make().String()) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// Upload writes a PNG and returns its object id and public URL.
func (u *Uploader) Upload(ctx context.Context, png []byte) (Object, error) {
	if len(png) == 0 {
		return Object{}, errEmptyContent
	}
	name := u.prefix + u.idGen() + ".png"
	if err := u.store.Write(ctx, u.bucket, name, pngContentType, png); err != nil {
		return Object{}, fmt.Errorf("storage: upload %s: %w", name, err)
	}
	return Object{ID: name, URL: u.publicURL(name)}, nil
}

// Delete removes an uploaded object. Deleting a missing object is not an error.
func (u *Uploader) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errInvalidObject
	}
	err := u.store.Delete(ctx, u.bucket, id)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

func (u *Uploader) publicURL(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return u.publicBase + "/" + url.PathEscape(u.bucket) + "/" + strings.Join(segments, "/")
}

type gcsStore struct {
	client *gcs.Client
}

func (s gcsStore) Write(ctx context.Context, bucket, name, contentType string, data []byte) error {
	w := s.client.Bucket(bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-store"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s gcsStore) Delete(ctx context.Context, bucket, name string) error {
	return s.client.Bucket(bucket).Object(name).Delete(ctx)
}
