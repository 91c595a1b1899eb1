package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/pkg/faults"
)

// KnowledgeLoader resolves a document's raw content from its source.
type KnowledgeLoader interface {
	Load(ctx context.Context, doc *entity.Document) (string, error)
}

// WikiFetcher fetches externally hosted documents. Implemented by the
// wiki client; declared here so the loader does not depend on it.
type WikiFetcher interface {
	FetchDocument(ctx context.Context, ref string) (content string, version string, err error)
}

// Resolver dispatches on the document source type.
type Resolver struct {
	httpClient *http.Client
	wiki       WikiFetcher
}

func NewResolver(wiki WikiFetcher) *Resolver {
	return &Resolver{
		httpClient: &http.Client{},
		wiki:       wiki,
	}
}

func (r *Resolver) Load(ctx context.Context, doc *entity.Document) (string, error) {
	switch doc.SourceType {
	case entity.SourceText:
		// Pasted text is stored inline in the content ref.
		return doc.ContentRef, nil
	case entity.SourceUpload:
		return r.download(ctx, doc.ContentRef)
	case entity.SourceExternalURL:
		content, _, err := r.wiki.FetchDocument(ctx, doc.ContentRef)
		return content, err
	default:
		return "", faults.Configuration("unsupported source type %q", doc.SourceType)
	}
}

// download pulls uploaded file content from blob storage.
func (r *Resolver) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", faults.Configuration("invalid content ref %q: %v", url, err)
	}

	res, err := r.httpClient.Do(req)
	if err != nil {
		return "", faults.Transient("download %s: %v", url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", faults.Transient("read %s: %v", url, err)
	}

	if res.StatusCode != http.StatusOK {
		return "", faults.Transient("download %s: %s", url, fmt.Sprintf("status %d", res.StatusCode))
	}

	return string(body), nil
}
