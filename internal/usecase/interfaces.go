package usecase

import "context"

// Notifier is the push side of the realtime layer. Implemented by the
// websocket manager; fakes stand in for it in tests.
type Notifier interface {
	SendToUser(userID string, message []byte)
	BroadcastToRoom(roomID string, message []byte, excludeUserID string)
}

// BlobStore abstracts the media bucket. Only deletion is needed here; uploads
// go through the storage handler directly.
type BlobStore interface {
	DeleteFileByURL(ctx context.Context, fileURL string) error
}
