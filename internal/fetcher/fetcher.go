// Package fetcher performs single HTTP fetches of upstream feeds and classifies
// every failure into a domain error kind.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// Client fetches feeds over HTTP. It makes exactly one attempt per call;
// deadlines come from the caller's context.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// New creates a feed client.
func New(userAgent string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   16,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads one feed. Localized feeds get a lang query parameter.
func (c *Client) Fetch(ctx context.Context, desc domain.FeedDescriptor, locale domain.Locale) (domain.RawPayload, error) {
	target, err := BuildURL(desc, locale)
	if err != nil {
		return domain.RawPayload{}, domain.NewFeedError(domain.KindBadURL, desc.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.RawPayload{}, domain.NewFeedError(domain.KindBadURL, desc.ID, fmt.Errorf("create request: %w", err))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawPayload{}, transportError(ctx, desc.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RawPayload{Status: resp.StatusCode}, &domain.FeedError{
			Kind:   domain.KindInvalidStatus,
			Feed:   desc.ID,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("upstream said: %s", bytes.TrimSpace(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.RawPayload{Status: resp.StatusCode}, transportError(ctx, desc.ID, fmt.Errorf("read body: %w", err))
	}

	text, err := decodeBody(body, desc.Charset, resp.Header.Get("Content-Type"))
	if err != nil {
		return domain.RawPayload{Status: resp.StatusCode}, domain.NewFeedError(domain.KindDecodingFailed, desc.ID, err)
	}

	c.logger.Debug("feed fetched", "feed", desc.ID, "status", resp.StatusCode, "bytes", len(text))
	return domain.RawPayload{Body: text, Status: resp.StatusCode}, nil
}

// BuildURL resolves the request URL for a feed and locale.
func BuildURL(desc domain.FeedDescriptor, locale domain.Locale) (string, error) {
	u, err := url.Parse(desc.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url %q is not an absolute http(s) url", desc.URL)
	}
	if desc.Localized {
		if locale == "" {
			locale = domain.LocalePortuguese
		}
		q := u.Query()
		q.Set("lang", string(locale))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// transportError separates deadline expiry from other transport failures.
func transportError(ctx context.Context, feed domain.FeedID, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewFeedError(domain.KindTimeout, feed, err)
	}
	return domain.NewFeedError(domain.KindRequestFailed, feed, err)
}

// decodeBody converts the body to UTF-8. The descriptor's charset wins over
// the response header; with neither, the body must already be valid UTF-8.
func decodeBody(body []byte, charset domain.Charset, contentType string) ([]byte, error) {
	enc, err := encodingFor(charset, contentType)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		out, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		return out, nil
	}

	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(body) {
		return nil, errors.New("body is not valid utf-8")
	}
	return body, nil
}

// encodingFor returns nil for UTF-8.
func encodingFor(charset domain.Charset, contentType string) (encoding.Encoding, error) {
	switch charset {
	case domain.CharsetLatin1:
		return charmap.ISO8859_1, nil
	case domain.CharsetUTF8:
		return nil, nil
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, nil
	}
	label := strings.ToLower(strings.TrimSpace(params["charset"]))
	if label == "" || label == "utf-8" || label == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc, nil
}
