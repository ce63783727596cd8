package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// CloudStorageClient wraps the media bucket. Message attachments live under
// media/<conversationID>/; objects are private and served through signed
// URLs or the API, never public links, since locked media must stay behind
// the unlock check.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadFile stores one media object and returns its gs-style URL.
func (c *CloudStorageClient) UploadFile(ctx context.Context, file io.Reader, contentType, conversationID string) (string, error) {
	var ext string
	switch contentType {
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	case "video/mp4":
		ext = ".mp4"
	case "video/quicktime":
		ext = ".mov"
	case "video/webm":
		ext = ".webm"
	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	objectName := fmt.Sprintf("media/%s/%s-%s%s", conversationID, uuid.New().String(), time.Now().Format("20060102150405"), ext)

	writer := c.client.Bucket(c.bucketName).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write object: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %v", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objectName), nil
}

// SignedURL grants temporary read access to one object.
func (c *CloudStorageClient) SignedURL(objectName string, expiry time.Duration) (string, error) {
	return c.client.Bucket(c.bucketName).SignedURL(objectName, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
}

// DeleteFileByURL removes the object a message body points at. Used when a
// media message is deleted; callers treat failure as best-effort.
func (c *CloudStorageClient) DeleteFileByURL(ctx context.Context, fileURL string) error {
	objectName, err := c.objectNameFromURL(fileURL)
	if err != nil {
		return err
	}

	if err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %v", objectName, err)
	}

	return nil
}

func (c *CloudStorageClient) objectNameFromURL(fileURL string) (string, error) {
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", c.bucketName)
	if !strings.HasPrefix(fileURL, prefix) {
		return "", fmt.Errorf("URL does not belong to bucket %s: %s", c.bucketName, fileURL)
	}
	return strings.TrimPrefix(fileURL, prefix), nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
