package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxtrack/itax-automation/internal/config"
)

func testStore(endpoint string) *SupabaseStore {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewSupabaseStore(config.StorageConfig{
		Endpoint:   endpoint,
		Bucket:     "certificates",
		ServiceKey: "service-key",
		Timeout:    5 * time.Second,
	}, logger)
}

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := testStore(server.URL)
	url, err := store.Upload(context.Background(), "P051234567A/pin_certificate/2024-03-05.pdf", "application/pdf", []byte("pdf-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/certificates/P051234567A/pin_certificate/2024-03-05.pdf", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "true", gotUpsert, "same-day re-extraction must overwrite")
	assert.Equal(t, []byte("pdf-bytes"), gotBody)
	assert.Contains(t, url, "/storage/v1/object/public/certificates/")
}

func TestSupabaseUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer server.Close()

	store := testStore(server.URL)
	_, err := store.Upload(context.Background(), "x.pdf", "application/pdf", []byte("pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid key")
}
