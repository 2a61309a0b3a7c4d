package backend

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/neptune-ai/fetcher-go/pkg/api"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
)

// APIToken is the decoded form of the opaque credential: the address of the
// backend plus the key exchanged for short-lived bearer tokens.
type APIToken struct {
	APIAddress string `json:"api_address"`
	APIKey     string `json:"api_key"`
}

// DecodeAPIToken unpacks the base64 JSON credential.
func DecodeAPIToken(raw string) (APIToken, error) {
	if raw == "" {
		return APIToken{}, fetcherr.ErrAPITokenNotProvided
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return APIToken{}, fetcherr.User("api token is not valid base64")
	}
	var token APIToken
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &token); err != nil {
		return APIToken{}, fetcherr.User("api token does not decode to the expected payload")
	}
	if token.APIAddress == "" || token.APIKey == "" {
		return APIToken{}, fetcherr.User("api token is missing the api address or key")
	}
	return token, nil
}

// TokenProvider hands out bearer tokens for outgoing requests.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// oidcTokenProvider exchanges the api key for OAuth2 tokens at the endpoint
// advertised by the backend's client-config. Discovery runs once, lazily;
// oauth2.ReuseTokenSource keeps refreshing after that.
type oidcTokenProvider struct {
	baseURL  string
	apiToken APIToken
	client   *http.Client

	once    sync.Once
	initErr error
	source  oauth2.TokenSource
}

func newOIDCTokenProvider(baseURL string, apiToken APIToken, client *http.Client) *oidcTokenProvider {
	return &oidcTokenProvider{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   client,
	}
}

func (p *oidcTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.once.Do(func() { p.initErr = p.bootstrap(ctx) })
	if p.initErr != nil {
		return nil, p.initErr
	}
	return p.source.Token()
}

func (p *oidcTokenProvider) bootstrap(ctx context.Context) error {
	var clientConfig api.ClientConfig
	if err := p.getJSON(ctx, p.baseURL+api.PathClientConfig, &clientConfig); err != nil {
		return errors.Wrap(err, "fetching client config")
	}

	var discovery struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := p.getJSON(ctx, clientConfig.Security.OpenIDDiscovery, &discovery); err != nil {
		return errors.Wrap(err, "fetching openid discovery document")
	}
	if discovery.TokenEndpoint == "" {
		return &fetcherr.UnexpectedResponseError{Body: "openid discovery document has no token endpoint"}
	}

	conf := &oauth2.Config{
		ClientID: clientConfig.Security.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: discovery.TokenEndpoint},
	}

	// Refreshes outlive the bootstrapping request, so bind the token source
	// to a background context carrying our transport.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, p.client)
	seed := &oauth2.Token{RefreshToken: p.apiToken.APIKey}
	p.source = oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx, seed))
	return nil
}

func (p *oidcTokenProvider) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(api.HeaderAccept, api.ContentTypeJSON)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		if resp.StatusCode == http.StatusUnauthorized {
			return &fetcherr.InvalidCredentialsError{Endpoint: url}
		}
		return &fetcherr.UnexpectedResponseError{StatusCode: resp.StatusCode}
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(out)
}

// staticTokenProvider returns a fixed token. Used in tests and against
// deployments that accept long-lived tokens directly.
type staticTokenProvider struct {
	token string
}

func (p *staticTokenProvider) Token(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: p.token}, nil
}

// NewStaticTokenProvider wraps a pre-issued bearer token.
func NewStaticTokenProvider(token string) TokenProvider {
	return &staticTokenProvider{token: token}
}

// nilTokenProvider disables auth, for unauthenticated test servers.
type nilTokenProvider struct{}

func (nilTokenProvider) Token(context.Context) (*oauth2.Token, error) {
	return nil, nil
}
