// Package store is the client for the object storage bucket that holds the
// compiled chart artifacts.
//
// The bucket speaks a plain S3/GCS-compatible HTTP surface: HEAD for object
// metadata, PUT to overwrite. The frontend reads the same objects directly
// from the bucket's public endpoint; this service is the only writer.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/vk/beancharts/internal/ctxlog"
)

// Config holds the connection settings for one bucket.
type Config struct {
	// BucketURL is the base URL of the bucket, without a trailing slash.
	BucketURL string
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// Timeout bounds a single request round trip.
	Timeout time.Duration
}

// StorageError reports a transport, auth or server failure against the
// bucket. Object absence is not a StorageError; Stat reports it as data.
type StorageError struct {
	Op     string
	Key    string
	Status int
	Err    error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s %s: unexpected status %d", e.Op, e.Key, e.Status)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Info describes the current state of one object key.
type Info struct {
	Key    string
	Exists bool
	// AgeSeconds is the object's age relative to the caller-supplied clock.
	// Meaningless when Exists is false.
	AgeSeconds float64
}

// Client talks to a single bucket. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New returns a client for the configured bucket.
func New(cfg Config) *Client {
	httpClient := resty.New().SetBaseURL(strings.TrimRight(cfg.BucketURL, "/"))
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	return &Client{http: httpClient}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// Stat looks up an object's metadata. A missing object is a normal outcome,
// returned as Info{Exists: false} with a nil error; only transport and
// server failures produce a StorageError.
func (c *Client) Stat(ctx context.Context, key string, now time.Time) (Info, error) {
	res, err := c.http.R().SetContext(ctx).Head("/" + key)
	if err != nil {
		return Info{}, &StorageError{Op: "stat", Key: key, Err: err}
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		return Info{Key: key}, nil
	case res.IsSuccess():
		modified, err := http.ParseTime(res.Header().Get("Last-Modified"))
		if err != nil {
			return Info{}, &StorageError{Op: "stat", Key: key, Err: fmt.Errorf("bad Last-Modified header: %w", err)}
		}
		return Info{Key: key, Exists: true, AgeSeconds: now.Sub(modified).Seconds()}, nil
	default:
		return Info{}, &StorageError{Op: "stat", Key: key, Status: res.StatusCode()}
	}
}

// Put overwrites the object at key with payload. There are no internal
// retries; retry policy belongs to the caller.
func (c *Client) Put(ctx context.Context, key string, payload []byte) error {
	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Put("/" + key)
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	if !res.IsSuccess() {
		return &StorageError{Op: "put", Key: key, Status: res.StatusCode()}
	}

	ctxlog.FromContext(ctx).Info("Uploaded artifact.",
		"key", key,
		"bytes", len(payload),
		"upload_seconds", time.Since(start).Seconds(),
	)
	return nil
}
