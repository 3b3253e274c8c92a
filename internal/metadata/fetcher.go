package metadata

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultFetchTimeoutConstant = 2 * time.Minute
	maximumPayloadBytesConstant = 256 << 20
	userAgentHeaderConstant     = "User-Agent"
	userAgentValueConstant      = "plugin-modernizer"
	acceptHeaderConstant        = "Accept"
	acceptAnyValueConstant      = "application/json, text/csv, */*"
)

// Fetcher retrieves a remote resource.
type Fetcher interface {
	Fetch(fetchContext context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches resources over HTTP with an instrumented transport.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher wraps client, or a default client when nil, with OpenTelemetry instrumentation.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	instrumented := &http.Client{Timeout: defaultFetchTimeoutConstant}
	baseTransport := http.DefaultTransport
	if client != nil {
		instrumented.Timeout = client.Timeout
		instrumented.CheckRedirect = client.CheckRedirect
		instrumented.Jar = client.Jar
		if client.Transport != nil {
			baseTransport = client.Transport
		}
	}
	instrumented.Transport = otelhttp.NewTransport(baseTransport)
	return &HTTPFetcher{client: instrumented}
}

// Fetch performs a GET request and returns the body of a 2xx response.
func (fetcher *HTTPFetcher) Fetch(fetchContext context.Context, url string) ([]byte, error) {
	request, requestError := http.NewRequestWithContext(fetchContext, http.MethodGet, url, http.NoBody)
	if requestError != nil {
		return nil, FetchError{URL: url, Cause: requestError}
	}
	request.Header.Set(userAgentHeaderConstant, userAgentValueConstant)
	request.Header.Set(acceptHeaderConstant, acceptAnyValueConstant)

	response, responseError := fetcher.client.Do(request)
	if responseError != nil {
		return nil, FetchError{URL: url, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maximumPayloadBytesConstant))
		return nil, FetchError{URL: url, StatusCode: response.StatusCode}
	}

	body, readError := io.ReadAll(io.LimitReader(response.Body, maximumPayloadBytesConstant))
	if readError != nil {
		return nil, FetchError{URL: url, StatusCode: response.StatusCode, Cause: readError}
	}
	return body, nil
}
