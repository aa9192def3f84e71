// Package datacite wraps the outbound DataCite REST API behind the
// narrow surface the handlers need: listing the DOIs under the member
// prefix and registering new ones. The registration agency is an
// external collaborator; everything here is best effort and reported
// back to the caller as-is.
package datacite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Client is the contract the web layer consumes.
type Client interface {
	// List returns the DOI names registered under the member prefix,
	// optionally restricted to one project suffix.
	List(ctx context.Context, suffix int64) ([]string, error)

	// Register creates or updates a DOI with the given metadata payload.
	Register(ctx context.Context, doi string, metadata []byte) error

	// Test checks API reachability with the configured credentials.
	Test(ctx context.Context) error
}

// Config carries the agency endpoint and member credentials.
type Config struct {
	URL      string
	User     string
	Password string
	Prefix   string
	Timeout  time.Duration
}

type httpClient struct {
	cfg  Config
	http *http.Client
}

// New builds the REST client.
func New(cfg Config) Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type doiAttributes struct {
	DOI string `json:"doi"`
}

type doiRecord struct {
	Attributes doiAttributes `json:"attributes"`
}

type doiPage struct {
	Data []doiRecord `json:"data"`
}

func (c *httpClient) List(ctx context.Context, suffix int64) ([]string, error) {
	query := c.cfg.Prefix
	if suffix >= 0 {
		query = fmt.Sprintf("%s/%d", c.cfg.Prefix, suffix)
	}

	body, err := c.do(ctx, http.MethodGet, "/dois?prefix="+query, nil)
	if err != nil {
		return nil, err
	}

	var page doiPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Wrap(err, "decode DOI listing")
	}

	names := make([]string, 0, len(page.Data))
	for _, record := range page.Data {
		names = append(names, record.Attributes.DOI)
	}

	return names, nil
}

func (c *httpClient) Register(ctx context.Context, doi string, metadata []byte) error {
	_, err := c.do(ctx, http.MethodPut, "/dois/"+doi, metadata)

	return errors.Wrapf(err, "register DOI %s", doi)
}

func (c *httpClient) Test(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/heartbeat", nil)
	if err != nil {
		return err
	}

	log.Info().Str("url", c.cfg.URL).Msg("DataCite API connection test successful")

	return nil
}

func (c *httpClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "build DataCite request")
	}

	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	req.Header.Set("Accept", "application/vnd.api+json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call DataCite API")
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("close DataCite response body")
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read DataCite response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("DataCite API returned %d for %s %s", resp.StatusCode, method, path)
	}

	return data, nil
}
