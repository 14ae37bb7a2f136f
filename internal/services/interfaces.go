package services

import (
	"context"
)

// Browser is a single automated browser window. The portal session and
// extraction tasks are written against this interface so they can be
// exercised without Chrome.
type Browser interface {
	// Navigate navigates to a URL
	Navigate(ctx context.Context, url string) error

	// WaitVisible waits for an element to become visible
	WaitVisible(ctx context.Context, selector string) error

	// Click clicks on an element
	Click(ctx context.Context, selector string) error

	// SendKeys types text into an element
	SendKeys(ctx context.Context, selector, text string) error

	// Clear clears the value of an input element
	Clear(ctx context.Context, selector string) error

	// Text gets text content from an element
	Text(ctx context.Context, selector string) (string, error)

	// HTML gets the outer HTML of the page
	HTML(ctx context.Context) (string, error)

	// Screenshot captures a single element as PNG bytes
	Screenshot(ctx context.Context, selector string) ([]byte, error)

	// Evaluate executes JavaScript and returns its result
	Evaluate(ctx context.Context, script string) (interface{}, error)

	// Exists reports whether an element is present in the DOM right now
	Exists(ctx context.Context, selector string) (bool, error)

	// AutoConfirmDialogs accepts any JavaScript dialog the page raises
	AutoConfirmDialogs(ctx context.Context) error

	// WaitDownload blocks until a download lands in the download
	// directory and returns its path
	WaitDownload(ctx context.Context) (string, error)

	// Close closes the browser window, releasing the Chrome process
	Close() error

	// IsHealthy checks if the browser is still usable
	IsHealthy() bool

	// ID returns the browser identifier
	ID() string
}

// BrowserFactory opens a fresh browser per company. Each extraction run
// owns exactly one browser from open to close.
type BrowserFactory interface {
	// Open creates a new browser window
	Open(ctx context.Context) (Browser, error)

	// Health returns factory health status
	Health() map[string]interface{}
}

// CacheService defines the interface for the shared cache
type CacheService interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear clears all cache entries
	Clear(ctx context.Context) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}

// ObjectStore uploads extracted documents to remote storage and hands
// back a public URL.
type ObjectStore interface {
	// Upload stores the file contents under the given object name
	Upload(ctx context.Context, objectName string, contentType string, data []byte) (string, error)
}
