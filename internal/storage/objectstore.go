package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/config"
)

// SupabaseStore uploads documents to a Supabase storage bucket over its
// REST API. Uploads use upsert semantics, so a repeated object name
// replaces the existing blob.
type SupabaseStore struct {
	endpoint   string
	bucket     string
	serviceKey string
	client     *http.Client
	logger     *logrus.Logger
}

// NewSupabaseStore creates the object store client.
func NewSupabaseStore(cfg config.StorageConfig, logger *logrus.Logger) *SupabaseStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &SupabaseStore{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		bucket:     cfg.Bucket,
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Upload stores data under objectName and returns the public URL.
func (s *SupabaseStore) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.endpoint, s.bucket, objectName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, string(body))
	}

	s.logger.WithFields(logrus.Fields{
		"object": objectName,
		"size":   len(data),
	}).Debug("Document uploaded")

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.endpoint, s.bucket, objectName), nil
}
