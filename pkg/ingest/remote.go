package ingest

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/menta2k/face-cropper/pkg/types"
)

// DefaultDownloadTimeout bounds a single image download
const DefaultDownloadTimeout = 30 * time.Second

var httpClient = resty.New().
	SetTimeout(DefaultDownloadTimeout).
	SetHeader("User-Agent", "face-cropper/1.0")

// isRemote reports whether p is an http or https URL
func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// remoteFile is a source file downloaded when opened
func remoteFile(rawURL string, limit int64) (types.SourceFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.SourceFile{}, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		name = u.Host
	}

	return types.SourceFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			data, err := download(rawURL, limit)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}

func download(rawURL string, limit int64) ([]byte, error) {
	res, err := httpClient.R().
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("failed to download image: HTTP %s", res.Status())
	}

	contentType := res.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	return data, nil
}
