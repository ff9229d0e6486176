package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/desertthunder/playdeploy/internal/shared"
)

// maxKeySize bounds remote key downloads; real keys are a few KB.
const maxKeySize = 1 << 20

// KeyFormat is the encoding of service-account key material.
type KeyFormat int

const (
	KeyFormatUnknown KeyFormat = iota
	KeyFormatJSON
	KeyFormatP12
)

func (f KeyFormat) String() string {
	switch f {
	case KeyFormatJSON:
		return "json"
	case KeyFormatP12:
		return "p12"
	default:
		return "unknown"
	}
}

// DetectKeyFormat reports whether key looks like a JSON key file; anything else is treated as PKCS#12.
func DetectKeyFormat(key []byte) KeyFormat {
	trimmed := bytes.TrimSpace(key)
	if len(trimmed) == 0 {
		return KeyFormatUnknown
	}
	if trimmed[0] == '{' {
		return KeyFormatJSON
	}
	return KeyFormatP12
}

// KeyFormatFromPath guesses the key format from the file extension of a location.
func KeyFormatFromPath(location string) KeyFormat {
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		location = u.Path
	}
	switch strings.ToLower(path.Ext(location)) {
	case ".json":
		return KeyFormatJSON
	case ".p12":
		return KeyFormatP12
	default:
		return KeyFormatUnknown
	}
}

// KeySource locates key material.
type KeySource struct {
	Location string // local path or remote URL
	Remote   bool
}

// ParseKeySource parses a key location given on the command line.
//
// http and https URLs are remote; file:// URIs and plain paths are local.
func ParseKeySource(raw string) (KeySource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return KeySource{}, fmt.Errorf("%w: key path is required", shared.ErrMissingCredentials)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return KeySource{}, fmt.Errorf("%w: invalid key location %q: %v", shared.ErrInvalidCredentials, raw, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KeySource{Location: raw, Remote: true}, nil
	case "file":
		return KeySource{Location: u.Host + u.Path}, nil
	case "":
		return KeySource{Location: raw}, nil
	default:
		if len(u.Scheme) == 1 {
			return KeySource{Location: raw}, nil // windows drive letter
		}
		return KeySource{}, fmt.Errorf("%w: unsupported key scheme %q", shared.ErrUnsupportedKey, u.Scheme)
	}
}

// String returns the location with any URL credentials or query masked.
func (k KeySource) String() string {
	if !k.Remote {
		return k.Location
	}

	u, err := url.Parse(k.Location)
	if err != nil {
		return shared.MaskSecret(k.Location)
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	if u.RawQuery != "" {
		u.RawQuery = shared.MaskSecret(u.RawQuery)
	}
	return u.String()
}

// LoadKey reads the key material from src. Remote keys are held only in memory.
func (p *Provider) LoadKey(ctx context.Context, src KeySource) ([]byte, error) {
	if !src.Remote {
		data, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read key file: %v", shared.ErrAuthFailed, err)
		}
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	p.logger.Debug("downloading key", "source", src.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAuthFailed, shared.ErrKeyDownload, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAuthFailed, shared.ErrKeyDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w: server returned %s", shared.ErrAuthFailed, shared.ErrKeyDownload, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: failed to read body: %v", shared.ErrAuthFailed, shared.ErrKeyDownload, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w: empty key", shared.ErrAuthFailed, shared.ErrKeyDownload)
	}

	p.logger.Debug("downloaded key", "bytes", len(data))
	return data, nil
}
