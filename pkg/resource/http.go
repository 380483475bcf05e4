package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// errHTTPNotFound marks 404/410 responses so the URL manager can report them
// as missing resources.
var errHTTPNotFound = errors.New("resource: remote resource missing")

func loadHTTP(ctx context.Context, client *http.Client, url string, timeout time.Duration) ([]byte, error) {
	if client == nil {
		return nil, errors.New("resource: http client is not configured")
	}
	if url == "" {
		return nil, errors.New("resource: url is required")
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errHTTPNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, errors.New("resource: unexpected status " + resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// URLFactory creates managers fetching logical paths below a remote base URL
// (OptionURLBase). OptionURLTimeout caps each request.
type URLFactory struct {
	options Options
	manager *urlManager
}

// NewURLFactory validates the options and returns the factory. A nil client
// selects a dedicated client honouring the configured timeout.
func NewURLFactory(options Options, client *http.Client) (*URLFactory, error) {
	opts := options.clone()
	raw, err := opts.require(KindURL, OptionURLBase)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(raw)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("resource: %s factory: %w %q: %q is not an http(s) URL", KindURL, ErrInvalidOption, OptionURLBase, raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	var timeout time.Duration
	if value, ok := opts.Get(OptionURLTimeout); ok {
		timeout, err = time.ParseDuration(value)
		if err != nil || timeout < 0 {
			return nil, fmt.Errorf("resource: %s factory: %w %q: %q", KindURL, ErrInvalidOption, OptionURLTimeout, value)
		}
	}

	var httpClient *http.Client
	if client != nil {
		clone := *client
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	} else {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &URLFactory{
		options: opts,
		manager: &urlManager{base: base, client: httpClient, timeout: timeout},
	}, nil
}

// Kind implements Factory.
func (f *URLFactory) Kind() Kind { return KindURL }

// MakeInstance implements Factory.
func (f *URLFactory) MakeInstance() Manager { return f.manager }

type urlManager struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
}

func (m *urlManager) Content(ctx context.Context, name string) ([]byte, error) {
	clean, ok := cleanPath(name)
	if !ok {
		return nil, notFound(string(KindURL), name)
	}
	target := m.base.ResolveReference(&url.URL{Path: clean})
	data, err := loadHTTP(ctx, m.client, target.String(), m.timeout)
	if err != nil {
		if errors.Is(err, errHTTPNotFound) {
			return nil, notFound(string(KindURL), name)
		}
		return nil, fmt.Errorf("resource: %s: fetch %q: %w", KindURL, name, err)
	}
	return data, nil
}
