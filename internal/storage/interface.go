package storage

import "context"

// MediaUploader defines the interface for uploading media assets.
// This interface allows for easy mocking in tests.
type MediaUploader interface {
	UploadAudio(ctx context.Context, audioData []byte, userID, originalFilename string) (*UploadResult, error)
	UploadImage(ctx context.Context, imageData []byte, userID, originalFilename string) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
}

// Ensure S3Uploader implements MediaUploader
var _ MediaUploader = (*S3Uploader)(nil)
