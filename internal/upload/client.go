// Package upload is a client for the legacy package-index upload API used by
// PyPI and TestPyPI: one multipart POST per distribution file.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"resty.dev/v3"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

// Uploader sends every distribution in a directory to a package index.
type Uploader interface {
	UploadDir(ctx context.Context, dir string) ([]string, error)
	Close() error
}

// Client uploads to one registry endpoint.
type Client struct {
	url      string
	username string
	token    string
	http     *resty.Client
}

var _ Uploader = (*Client)(nil)

// NewClient creates a client for the given endpoint. The token is sent as the
// basic-auth password.
func NewClient(url, username, token string) *Client {
	return &Client{
		url:      url,
		username: username,
		token:    token,
		http:     resty.New().SetHeader("User-Agent", "wheelgrid"),
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

// UploadDir uploads every .whl and .tar.gz in dir in name order. The first
// failure stops the upload; files already sent stay sent.
func (c *Client) UploadDir(ctx context.Context, dir string) ([]string, error) {
	logger := ctxlog.FromContext(ctx).With("registry", c.url)

	var files []string
	for _, pattern := range []string{"*.whl", "*.tar.gz"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no distributions found in %s", dir)
	}

	uploaded := make([]string, 0, len(files))
	for _, path := range files {
		if err := c.UploadFile(ctx, path); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, filepath.Base(path))
	}
	logger.Info("⬆️ Distributions uploaded.", "count", len(uploaded))
	return uploaded, nil
}

// UploadFile uploads one distribution file.
func (c *Client) UploadFile(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	dist, err := ParseDistFilename(filepath.Base(path))
	if err != nil {
		return err
	}
	digest, err := sha256File(path)
	if err != nil {
		return err
	}

	logger.Debug("Uploading distribution.", "file", dist.Filename, "name", dist.Name, "version", dist.Version)
	res, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.username, c.token).
		SetMultipartFormData(map[string]string{
			":action":          "file_upload",
			"protocol_version": "1",
			"metadata_version": "2.1",
			"name":             dist.Name,
			"version":          dist.Version,
			"filetype":         dist.FileType,
			"pyversion":        dist.PyVersion,
			"sha256_digest":    digest,
		}).
		SetFile("content", path).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("upload of %s failed: %w", dist.Filename, err)
	}
	if res.IsError() {
		return fmt.Errorf("upload of %s rejected: %d %s", dist.Filename, res.StatusCode(), res.String())
	}
	logger.Info("Distribution uploaded.", "file", dist.Filename, "status", res.StatusCode())
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
