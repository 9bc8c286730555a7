package assetcrawler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/net/html/charset"
)

var (
	// ErrSkipped marks a reference that is not fetched at all.
	ErrSkipped = errors.New("asset skipped")
	// ErrResponseTooLarge is returned when a body exceeds the size ceiling.
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

// Fetcher performs the HTTP GETs for root pages, assets and payload probes.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// NewFetcher creates a Fetcher. Deadlines are applied per request, so the
// client itself carries no timeout.
func NewFetcher(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client, cfg: cfg}
}

type response struct {
	body        []byte
	contentType string
	status      int
	finalURL    *url.URL
}

// getRequest performs a GET with its own deadline and size ceiling. Any
// non-2xx status is an error.
func (f *Fetcher) getRequest(ctx context.Context, rawURL string, timeout time.Duration, limit int64) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("received status code %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("content length %d: %w", resp.ContentLength, ErrResponseTooLarge)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("more than %d bytes: %w", limit, ErrResponseTooLarge)
	}
	return &response{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
		status:      resp.StatusCode,
		finalURL:    resp.Request.URL,
	}, nil
}

// FetchRoot fetches the page an extraction starts from and returns it as
// UTF-8 text along with the URL it was finally served from.
func (f *Fetcher) FetchRoot(ctx context.Context, rawURL string) (string, *url.URL, error) {
	resp, err := f.getRequest(ctx, rawURL, f.cfg.RootTimeout, f.cfg.MaxRootBytes)
	if err != nil {
		return "", nil, err
	}
	return decodeText(resp.body, resp.contentType), resp.finalURL, nil
}

// FetchAsset fetches one asset and turns it into an ExtractedFile. It returns
// ErrSkipped for references that are never fetched; every other error is a
// failed fetch.
func (f *Fetcher) FetchAsset(ctx context.Context, rawURL string) (*extractiondb.ExtractedFile, error) {
	if rawURL == "" || len(rawURL) > f.cfg.MaxURLLength {
		return nil, ErrSkipped
	}
	u, err := url.Parse(rawURL)
	if err != nil || !isNetworkScheme(u.Scheme) || u.Host == "" {
		return nil, ErrSkipped
	}

	resp, err := f.getRequest(ctx, rawURL, f.cfg.AssetTimeout, f.cfg.MaxResponseBytes)
	if err != nil {
		return nil, err
	}

	declared := resp.contentType
	sniffed := declared
	if sniffed == "" {
		sniffed = mimetype.Detect(resp.body).String()
	}
	c := Classify(rawURL, declared)
	mimeType := mediaType(declared)
	if mimeType == "" {
		mimeType = c.MimeType
	}

	file := &extractiondb.ExtractedFile{
		ID:        uuid.NewString(),
		Name:      fileName(u),
		Type:      c.Type,
		MimeType:  mimeType,
		SourceURL: rawURL,
	}
	file.Path = c.Folder + "/" + file.Name
	if IsBinary(rawURL, sniffed) {
		file.Binary = true
		file.Content = DataURI(mimeType, resp.body)
	} else {
		file.Content = decodeText(resp.body, declared)
	}
	file.Size = int64(len(file.Content))
	return file, nil
}

// DataURI wraps binary content in a base64 data URI.
func DataURI(mimeType string, body []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

// fileName derives a file name from the last path segment, synthesizing one
// when the path has none. u.Path is already decoded once; the result never
// contains a separator or names a directory.
func fileName(u *url.URL) string {
	name := strings.TrimSpace(path.Base(u.Path))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "asset-" + randomSuffix()
	}
	return name
}

// decodeText converts body to UTF-8 using the declared charset.
func decodeText(body []byte, contentType string) string {
	_, params, _ := strings.Cut(strings.ToLower(contentType), "charset=")
	declaredUTF8 := params == "" || strings.HasPrefix(strings.Trim(params, `"' `), "utf-8") || strings.HasPrefix(strings.Trim(params, `"' `), "utf8")
	if declaredUTF8 && utf8.Valid(body) {
		return string(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
