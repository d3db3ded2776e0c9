// Package imagestore houses the logic for interacting with the GCS bucket
// that holds banter's uploaded images.
//
// Every asset kind has a permanent path scoped by its owning entity, and
// avatars and server images also have a "preview" path: a single fixed slot
// under temp/{uid}/ that is overwritten on every call, so a client can show
// an image before the owning document commits to it.  Preview slots are never
// cleaned up.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store fronts the image bucket in GCS.
type Store struct {
	gcs    *storage.Client
	bucket string
}

func New(gcs *storage.Client, bucket string) *Store {
	return &Store{
		gcs:    gcs,
		bucket: bucket,
	}
}

func avatarPath(userID string) string {
	return path.Join("users", userID, "avatar")
}

func avatarPreviewPath(userID string) string {
	return path.Join("temp", userID, "avatar")
}

func serverImagePath(serverID string) string {
	return path.Join("servers", serverID, "image")
}

func serverImagePreviewPath(userID string) string {
	return path.Join("temp", userID, "serverImage")
}

func messageImagePath(serverID, messageID, filename string) string {
	return path.Join("servers", serverID, "messages", messageID, filename)
}

// DownloadURL returns the fetchable URL for an object in the image bucket.
func (s *Store) DownloadURL(object string) string {
	return "https://storage.googleapis.com/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(object)
}

// upload writes r to the named object, overwriting any previous content, and
// returns the object's download URL.
func (s *Store) upload(ctx context.Context, object string, r io.Reader) (string, error) {
	tracer := otel.Tracer("banter/imagestore")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Store.upload")
	defer span.End()

	span.SetAttributes(attribute.String("object", object))

	w := s.gcs.Bucket(s.bucket).Object(object).NewWriter(ctx)

	// Disable chunking.  This will expose more transient server errors to
	// calling code, but significantly reduces memory usage.
	w.ChunkSize = 0

	if _, err := io.Copy(w, r); err != nil {
		err := fmt.Errorf("while writing object %q: %w", object, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if err := w.Close(); err != nil {
		err := fmt.Errorf("while closing writer for object %q: %w", object, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetStatus(codes.Ok, "")

	return s.DownloadURL(object), nil
}

// UploadAvatar uploads a user's avatar to its permanent path.
func (s *Store) UploadAvatar(ctx context.Context, userID string, r io.Reader) (string, error) {
	return s.upload(ctx, avatarPath(userID), r)
}

// UploadAvatarPreview uploads an avatar to the user's preview slot.
func (s *Store) UploadAvatarPreview(ctx context.Context, userID string, r io.Reader) (string, error) {
	return s.upload(ctx, avatarPreviewPath(userID), r)
}

// UploadServerImage uploads a server's image to its permanent path.
func (s *Store) UploadServerImage(ctx context.Context, serverID string, r io.Reader) (string, error) {
	return s.upload(ctx, serverImagePath(serverID), r)
}

// UploadServerImagePreview uploads a server image to the uploading user's
// preview slot.  The slot is keyed by user, not server, because the server
// may not exist yet.
func (s *Store) UploadServerImagePreview(ctx context.Context, userID string, r io.Reader) (string, error) {
	return s.upload(ctx, serverImagePreviewPath(userID), r)
}

// UploadMessageImage uploads a message attachment, namespaced by server and
// message ID so attachments never collide across messages.
func (s *Store) UploadMessageImage(ctx context.Context, serverID, messageID, filename string, r io.Reader) (string, error) {
	return s.upload(ctx, messageImagePath(serverID, messageID, filename), r)
}
