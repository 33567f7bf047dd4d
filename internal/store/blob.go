package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Deterministic avatar paths. Blobs are addressed by owner identity, never by
// content, so teardown can delete them without reading any document first.
func UserAvatarPath(uid string) string {
	return fmt.Sprintf("user-avatars/%s/avatar.jpg", uid)
}

func GroupAvatarPath(ownerID, groupID string) string {
	return fmt.Sprintf("group-avatars/%s/%s/avatar.jpg", ownerID, groupID)
}

// GCSBlobStore implements BlobStore on a Firebase Storage (GCS) bucket.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
}

var _ BlobStore = (*GCSBlobStore)(nil)

func NewGCSBlobStore(client *storage.Client, bucket string) (*GCSBlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client cannot be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket name is required")
	}
	return &GCSBlobStore{client: client, bucket: bucket}, nil
}

func (s *GCSBlobStore) DeleteUserAvatar(ctx context.Context, uid string) error {
	return s.delete(ctx, UserAvatarPath(uid))
}

func (s *GCSBlobStore) DeleteGroupAvatar(ctx context.Context, ownerID, groupID string) error {
	return s.delete(ctx, GroupAvatarPath(ownerID, groupID))
}

func (s *GCSBlobStore) delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

func (s *GCSBlobStore) UploadUserAvatar(ctx context.Context, uid string, data []byte, contentType string) (string, error) {
	return s.upload(ctx, UserAvatarPath(uid), data, contentType)
}

func (s *GCSBlobStore) UploadGroupAvatar(ctx context.Context, ownerID, groupID string, data []byte, contentType string) (string, error) {
	return s.upload(ctx, GroupAvatarPath(ownerID, groupID), data, contentType)
}

func (s *GCSBlobStore) upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	// Firebase clients fetch objects through download URLs gated by a token
	// stored in object metadata. Any opaque string works; UUID is fine.
	token := uuid.New().String()

	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing %s: %w", path, err)
	}

	return firebaseDownloadURL(s.bucket, path, token), nil
}

// firebaseDownloadURL builds the tokenized Firebase Storage download URL:
// https://firebasestorage.googleapis.com/v0/b/{bucket}/o/{path}?alt=media&token={token}
func firebaseDownloadURL(bucket, objectName, token string) string {
	return fmt.Sprintf(
		"https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket,
		url.PathEscape(objectName),
		url.QueryEscape(token),
	)
}

// LocalBlobStore implements BlobStore on the local filesystem for development
// without a bucket. Paths mirror the GCS layout under a base directory.
type LocalBlobStore struct {
	baseDir string
}

var _ BlobStore = (*LocalBlobStore)(nil)

func NewLocalBlobStore(baseDir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &LocalBlobStore{baseDir: baseDir}, nil
}

func (s *LocalBlobStore) DeleteUserAvatar(ctx context.Context, uid string) error {
	return s.delete(UserAvatarPath(uid))
}

func (s *LocalBlobStore) DeleteGroupAvatar(ctx context.Context, ownerID, groupID string) error {
	return s.delete(GroupAvatarPath(ownerID, groupID))
}

func (s *LocalBlobStore) delete(path string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return ErrBlobNotFound
	}
	return err
}

func (s *LocalBlobStore) UploadUserAvatar(ctx context.Context, uid string, data []byte, contentType string) (string, error) {
	return s.upload(UserAvatarPath(uid), data)
}

func (s *LocalBlobStore) UploadGroupAvatar(ctx context.Context, ownerID, groupID string, data []byte, contentType string) (string, error) {
	return s.upload(GroupAvatarPath(ownerID, groupID), data)
}

func (s *LocalBlobStore) upload(path string, data []byte) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", err
	}
	return "/blobs/" + path, nil
}
