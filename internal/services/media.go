package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MediaService stores uploaded blobs in bucket directories under a local
// root that is served over HTTP at publicURL
type MediaService struct {
	root      string
	publicURL string
}

// NewMediaService creates a media service rooted at dir
func NewMediaService(dir, publicURL string) *MediaService {
	return &MediaService{
		root:      dir,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Root is the directory blobs are written to
func (m *MediaService) Root() string {
	return m.root
}

// Upload writes r to bucket/objectPath, replacing an existing blob
func (m *MediaService) Upload(ctx context.Context, bucket, objectPath string, r io.Reader) error {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := filepath.Join(m.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to store media file: %w", err)
	}
	return nil
}

// PublicURL returns the URL a stored blob is served at
func (m *MediaService) PublicURL(bucket, objectPath string) string {
	key, err := objectKey(bucket, objectPath)
	if err != nil {
		return ""
	}
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return m.publicURL + "/" + strings.Join(segments, "/")
}

// objectKey joins bucket and path and rejects keys escaping the bucket
func objectKey(bucket, objectPath string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", Invalid("invalid bucket %q", bucket)
	}
	clean := path.Clean("/" + strings.ReplaceAll(objectPath, `\`, "/"))
	if clean == "/" {
		return "", Invalid("invalid object path %q", objectPath)
	}
	return bucket + clean, nil
}
