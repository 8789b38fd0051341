package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Uploader handles media file uploads to AWS S3
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// UploadResult contains the result of an S3 upload
type UploadResult struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Region string `json:"region"`
	Size   int64  `json:"size"`
}

// NewS3Uploader creates a new S3 uploader
func NewS3Uploader(region, bucket, baseURL string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// UploadAudio uploads an audio file to S3 with proper naming and metadata
func (u *S3Uploader) UploadAudio(ctx context.Context, audioData []byte, userID, originalFilename string) (*UploadResult, error) {
	fileID := uuid.New().String()
	extension := filepath.Ext(originalFilename)
	if extension == "" {
		extension = ".mp3"
	}

	// Organized folder structure: audio/{year}/{month}/{userID}/{fileID}.mp3
	now := time.Now()
	key := fmt.Sprintf("audio/%d/%02d/%s/%s%s",
		now.Year(), now.Month(), userID, fileID, extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(audioData),
		ContentType: aws.String(getContentType(extension)),

		// Audio files are immutable once uploaded
		CacheControl: aws.String("max-age=3600"),

		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": originalFilename,
			"upload-timestamp":  now.Format(time.RFC3339),
			"file-type":         "audio",
		},
	}

	_, err := u.client.PutObject(ctx, putObjectInput)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key)

	return &UploadResult{
		Key:    key,
		URL:    publicURL,
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(audioData)),
	}, nil
}

// UploadImage uploads cover art or an avatar image
func (u *S3Uploader) UploadImage(ctx context.Context, imageData []byte, userID, originalFilename string) (*UploadResult, error) {
	fileID := uuid.New().String()
	extension := strings.ToLower(filepath.Ext(originalFilename))
	if extension == "" {
		extension = ".jpg"
	}

	now := time.Now()
	key := fmt.Sprintf("images/%d/%02d/%s/%s%s",
		now.Year(), now.Month(), userID, fileID, extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(imageData),
		ContentType:  aws.String(getContentType(extension)),
		CacheControl: aws.String("max-age=86400"),

		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": originalFilename,
			"upload-timestamp":  now.Format(time.RFC3339),
			"file-type":         "image",
		},
	}

	_, err := u.client.PutObject(ctx, putObjectInput)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	publicURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(u.baseURL, "/"), key)

	return &UploadResult{
		Key:    key,
		URL:    publicURL,
		Bucket: u.bucket,
		Region: u.region,
		Size:   int64(len(imageData)),
	}, nil
}

// DeleteFile deletes a file from S3
func (u *S3Uploader) DeleteFile(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// getContentType maps file extensions to MIME types
func getContentType(extension string) string {
	switch strings.ToLower(extension) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
