package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"golang.org/x/oauth2"
)

const (
	DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	DefaultUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
)

var _ ports.FederationVerifier = (*GoogleVerifier)(nil)

// GoogleConfig points the verifier at the Google endpoints
type GoogleConfig struct {
	ClientID     string // expected token audience, skipped when empty
	TokenInfoURL string
	UserInfoURL  string
	Timeout      time.Duration
}

// GoogleVerifier resolves a Google access token into a verified profile
type GoogleVerifier struct {
	config     GoogleConfig
	httpClient *http.Client
}

// NewGoogleVerifier creates a new verifier, filling in Google's endpoints and a timed client when unset
func NewGoogleVerifier(config GoogleConfig, httpClient *http.Client) *GoogleVerifier {
	if config.TokenInfoURL == "" {
		config.TokenInfoURL = DefaultTokenInfoURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = DefaultUserInfoURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &GoogleVerifier{config: config, httpClient: httpClient}
}

type tokenInfo struct {
	Aud       string `json:"aud"`
	Sub       string `json:"sub"`
	Email     string `json:"email"`
	ExpiresIn string `json:"expires_in"`
}

type userInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify checks the token with tokeninfo, then loads the profile from userinfo.
// Rejections by Google yield core.ErrInvalidToken, transport failures core.ErrUpstream.
func (v *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*core.FederatedProfile, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, core.ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	info, err := v.tokenInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if v.config.ClientID != "" && info.Aud != v.config.ClientID {
		return nil, fmt.Errorf("token audience mismatch: %w", core.ErrInvalidToken)
	}
	if expiresIn, err := strconv.Atoi(info.ExpiresIn); err != nil || expiresIn <= 0 {
		return nil, fmt.Errorf("token expired: %w", core.ErrInvalidToken)
	}

	user, err := v.userInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if user.Sub == "" || (info.Sub != "" && info.Sub != user.Sub) {
		return nil, fmt.Errorf("token subject mismatch: %w", core.ErrInvalidToken)
	}

	email := user.Email
	if email == "" {
		email = info.Email
	}

	return &core.FederatedProfile{
		ID:          user.Sub,
		Email:       email,
		DisplayName: user.Name,
	}, nil
}

func (v *GoogleVerifier) tokenInfo(ctx context.Context, accessToken string) (*tokenInfo, error) {
	endpoint, err := url.Parse(v.config.TokenInfoURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tokeninfo url: %w", err)
	}
	query := endpoint.Query()
	query.Set("access_token", accessToken)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var info tokenInfo
	if err := v.do(v.httpClient, req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (v *GoogleVerifier) userInfo(ctx context.Context, accessToken string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	// the oauth2 transport attaches the bearer header on top of our own client
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, v.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	)

	var user userInfo
	if err := v.do(client, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (v *GoogleVerifier) do(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		// the request URL carries the access token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%w: %s %s: %v", core.ErrUpstream, req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: provider returned %d", core.ErrUpstream, resp.StatusCode)
	default:
		return fmt.Errorf("provider returned %d: %w", resp.StatusCode, core.ErrInvalidToken)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode provider response: %v", core.ErrUpstream, err)
	}
	return nil
}
