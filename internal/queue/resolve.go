package queue

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/kozaktomas/face-service/internal/constants"
	"github.com/kozaktomas/face-service/internal/imaging"
)

const defaultLookupBaseURL = "http://localhost:5000/api/images"

// Resolver turns a file reference into normalized image bytes ready for the
// detector. Remote fetches and lookups carry their own timeout, independent
// of any caller-side await window.
type Resolver struct {
	client        *http.Client
	lookupBaseURL string
	maxImageSize  int
}

// NewResolver creates a resolver. An empty lookupBaseURL falls back to the
// local lookup service default.
func NewResolver(lookupBaseURL string, maxImageSize int) *Resolver {
	if lookupBaseURL == "" {
		lookupBaseURL = defaultLookupBaseURL
	}
	if maxImageSize <= 0 {
		maxImageSize = constants.MaxImageSize
	}
	return &Resolver{
		client:        &http.Client{Timeout: constants.FetchTimeout},
		lookupBaseURL: strings.TrimSuffix(lookupBaseURL, "/"),
		maxImageSize:  maxImageSize,
	}
}

// Resolve fetches and decode-validates the referenced image. Every failure
// (fetch, lookup, read, decode) is returned as an error for the job result;
// nothing here is retried.
func (r *Resolver) Resolve(ctx context.Context, ref FileReference) ([]byte, error) {
	var data []byte
	var err error

	switch ref.Kind {
	case KindRemoteURL:
		data, err = r.fetch(ctx, ref.Raw)
		if err != nil {
			return nil, fmt.Errorf("remote fetch failed: %w", err)
		}
	case KindLookupID:
		data, err = r.fetch(ctx, r.lookupBaseURL+"/"+ref.Raw)
		if err != nil {
			return nil, fmt.Errorf("lookup failed for %s: %w", ref.Raw, err)
		}
	case KindLocalPath:
		data, err = os.ReadFile(ref.Raw)
		if err != nil {
			return nil, fmt.Errorf("file read failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown reference kind %d", ref.Kind)
	}

	normalized, err := imaging.Normalize(data, r.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("could not decode image %s: %w", ref.Raw, err)
	}
	return normalized, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}
