package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"kb-ingest-be/internal/pkg/faults"
)

// Client talks to the external wiki hosting imported documents.
// It doubles as the version provider the refresh scheduler compares
// against: the wiki's revision counter is the version marker.
type Client struct {
	BaseURL string
	Token   string

	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		httpClient: &http.Client{},
	}
}

type wikiDocResponse struct {
	Data struct {
		Title   string `json:"title"`
		Body    string `json:"body"`
		Version int64  `json:"version"`
	} `json:"data"`
}

// FetchDocument returns the document body and its current version marker.
func (c *Client) FetchDocument(ctx context.Context, ref string) (string, string, error) {
	doc, err := c.get(ctx, ref)
	if err != nil {
		return "", "", err
	}
	return doc.Data.Body, fmt.Sprintf("%d", doc.Data.Version), nil
}

// GetVersion returns only the version marker for change detection.
func (c *Client) GetVersion(ctx context.Context, ref string) (string, error) {
	doc, err := c.get(ctx, ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", doc.Data.Version), nil
}

func (c *Client) get(ctx context.Context, ref string) (*wikiDocResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v2/docs/%s", c.BaseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, faults.Configuration("invalid wiki ref %q: %v", ref, err)
	}
	if c.Token != "" {
		req.Header.Set("X-Auth-Token", c.Token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("wiki fetch %s: %v", ref, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, faults.Transient("wiki read %s: %v", ref, err)
	}

	if res.StatusCode == http.StatusNotFound {
		return nil, faults.NotFound("wiki doc %s not found", ref)
	}
	if res.StatusCode != http.StatusOK {
		return nil, faults.Transient("wiki fetch %s: status %d, body %s", ref, res.StatusCode, string(body))
	}

	var doc wikiDocResponse
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, faults.Transient("wiki decode %s: %v", ref, err)
	}
	return &doc, nil
}
