package githubauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	installationTokenPathTemplate  = "%s/app/installations/%d/access_tokens"
	installationTokenErrorTemplate = "installation token request returned status %d"
	installationRequestTemplate    = "request installation token: %w"
	installationDecodeTemplate     = "decode installation token: %w"
	authorizationHeaderConstant    = "Authorization"
	acceptHeaderConstant           = "Accept"
	acceptValueConstant            = "application/vnd.github+json"
	bearerPrefixConstant           = "Bearer "
	bearerTokenTypeConstant        = "Bearer"
	requestTimeoutConstant         = 30 * time.Second

	logMessageUsingAppCredentials   = "Using GitHub App installation credentials"
	logMessageUsingConfiguredToken  = "Using configured GitHub token"
	logMessageUsingEnvironmentToken = "Using GitHub token from environment"
	logFieldAppIDConstant           = "app_id"
	logFieldInstallationIDConstant  = "installation_id"
)

// SourceConfiguration selects where credentials come from. Precedence: Token, App, environment.
type SourceConfiguration struct {
	Token       string
	App         AppCredentials
	Environment map[string]string
	Lookup      EnvironmentLookup
	APIBaseURL  string
	HTTPClient  *http.Client
	Clock       func() time.Time
}

// NewTokenSource returns a reusable token source for the configured credentials.
func NewTokenSource(logger *zap.Logger, configuration SourceConfiguration) (oauth2.TokenSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if token, found := trimmedValue(configuration.Token); found {
		logger.Debug(logMessageUsingConfiguredToken)
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: bearerTokenTypeConstant}), nil
	}

	if configuration.App.Configured() {
		if validationError := configuration.App.Validate(); validationError != nil {
			return nil, validationError
		}
		logger.Debug(logMessageUsingAppCredentials,
			zap.Int64(logFieldAppIDConstant, configuration.App.AppID),
			zap.Int64(logFieldInstallationIDConstant, configuration.App.InstallationID),
		)
		return oauth2.ReuseTokenSource(nil, newInstallationTokenSource(configuration)), nil
	}

	token, found := ResolveToken(configuration.Environment, configuration.Lookup)
	if !found {
		return nil, ErrTokenNotFound
	}
	logger.Debug(logMessageUsingEnvironmentToken)
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: bearerTokenTypeConstant}), nil
}

type installationTokenSource struct {
	credentials AppCredentials
	apiBaseURL  string
	client      *http.Client
	clock       func() time.Time
}

func newInstallationTokenSource(configuration SourceConfiguration) *installationTokenSource {
	apiBaseURL := strings.TrimRight(strings.TrimSpace(configuration.APIBaseURL), "/")
	if len(apiBaseURL) == 0 {
		apiBaseURL = DefaultAPIBaseURL
	}
	baseTransport := http.DefaultTransport
	if configuration.HTTPClient != nil && configuration.HTTPClient.Transport != nil {
		baseTransport = configuration.HTTPClient.Transport
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}
	return &installationTokenSource{
		credentials: configuration.App,
		apiBaseURL:  apiBaseURL,
		client:      &http.Client{Timeout: requestTimeoutConstant, Transport: otelhttp.NewTransport(baseTransport)},
		clock:       clock,
	}
}

// Token exchanges a freshly signed App JWT for an installation access token.
func (source *installationTokenSource) Token() (*oauth2.Token, error) {
	appToken, signError := SignAppToken(source.credentials, source.clock())
	if signError != nil {
		return nil, signError
	}

	requestContext, cancel := context.WithTimeout(context.Background(), requestTimeoutConstant)
	defer cancel()

	endpoint := fmt.Sprintf(installationTokenPathTemplate, source.apiBaseURL, source.credentials.InstallationID)
	request, requestError := http.NewRequestWithContext(requestContext, http.MethodPost, endpoint, http.NoBody)
	if requestError != nil {
		return nil, fmt.Errorf(installationRequestTemplate, requestError)
	}
	request.Header.Set(authorizationHeaderConstant, bearerPrefixConstant+appToken)
	request.Header.Set(acceptHeaderConstant, acceptValueConstant)

	response, responseError := source.client.Do(request)
	if responseError != nil {
		return nil, fmt.Errorf(installationRequestTemplate, responseError)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil, fmt.Errorf(installationTokenErrorTemplate, response.StatusCode)
	}

	var payload struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if decodeError := json.NewDecoder(response.Body).Decode(&payload); decodeError != nil {
		return nil, fmt.Errorf(installationDecodeTemplate, decodeError)
	}
	return &oauth2.Token{AccessToken: payload.Token, TokenType: bearerTokenTypeConstant, Expiry: payload.ExpiresAt}, nil
}
