// Package storage uploads editor images to a publicly fetchable location.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"aieditor/internal/canvas"
)

// Object is a stored blob and its public location.
type Object struct {
	Key         string `json:"path"`
	URL         string `json:"publicUrl"`
	ContentType string `json:"-"`
	Size        int64  `json:"-"`
}

// BlobStore writes bytes under a key.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
}

// ErrEmptyPayload is returned when an upload carries no bytes.
var ErrEmptyPayload = errors.New("storage: image payload is empty")

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Uploader turns inline base64 images into stored objects.
type Uploader struct {
	store BlobStore
	now   func() time.Time
}

// NewUploader wraps store. A nil clock uses time.Now.
func NewUploader(store BlobStore, now func() time.Time) *Uploader {
	if now == nil {
		now = time.Now
	}
	return &Uploader{store: store, now: now}
}

// Upload stores a base64 image (data URL prefix optional) as image/png under
// a unique key derived from filename.
func (u *Uploader) Upload(ctx context.Context, imageData, filename string) (Object, error) {
	_, raw, err := canvas.ParseDataURL(imageData)
	if err != nil {
		return Object{}, err
	}
	if len(raw) == 0 {
		return Object{}, ErrEmptyPayload
	}
	return u.Put(ctx, filename, raw, "image/png")
}

// Put stores raw bytes under a unique key derived from filename.
func (u *Uploader) Put(ctx context.Context, filename string, data []byte, contentType string) (Object, error) {
	if u == nil || u.store == nil {
		return Object{}, errors.New("storage: no store configured")
	}
	obj, err := u.store.Put(ctx, u.key(filename), data, contentType)
	if err != nil {
		return Object{}, fmt.Errorf("storage: upload: %w", err)
	}
	return obj, nil
}

func (u *Uploader) key(filename string) string {
	return fmt.Sprintf("%d-%s-%s", u.now().UnixMilli(), uuid.NewString()[:8], cleanFilename(filename))
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = unsafeFilename.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "image.png"
	}
	return name
}
