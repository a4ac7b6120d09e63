// Package graphapi is a client for the alerting service's REST API. Bearer
// tokens come from the client-credentials flow; the oauth2 token source
// caches them until expiry.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"idpmon/pkg/models"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Config configures the client.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// Client talks to the alerting service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an authenticated alerting-service client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("tenant id, client id and client secret are required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  creds.Client(ctx),
	}, nil
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s: %s", resp.Status, truncate(data, 200))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(data []byte, max int) string {
	if len(data) > max {
		data = data[:max]
	}
	return string(data)
}

// quote escapes a value for use inside a single-quoted OData filter literal.
func quote(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// GetAlert fetches one security alert by id, or nil when it does not exist.
func (c *Client) GetAlert(ctx context.Context, id string) (*models.SecurityAlert, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("id eq '%s'", quote(id)))

	var env listEnvelope[models.SecurityAlert]
	if err := c.do(ctx, http.MethodGet, "/security/alerts", q, nil, &env); err != nil {
		return nil, err
	}
	if len(env.Value) == 0 {
		return nil, nil
	}
	return &env.Value[0], nil
}

// GetRiskDetection fetches one risk detection by id, or nil when it does not
// exist.
func (c *Client) GetRiskDetection(ctx context.Context, id string) (*models.RiskDetection, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("id eq '%s'", quote(id)))

	var env listEnvelope[models.RiskDetection]
	if err := c.do(ctx, http.MethodGet, "/identityProtection/riskDetections", q, nil, &env); err != nil {
		return nil, err
	}
	if len(env.Value) == 0 {
		return nil, nil
	}
	return &env.Value[0], nil
}

// ListRiskDetectionHistory fetches the user's prior risk detections ordered
// most recent first, excluding the given detection id.
func (c *Client) ListRiskDetectionHistory(ctx context.Context, userPrincipalName, excludeID string) ([]models.RiskDetection, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("userPrincipalName eq '%s' and id ne '%s'", quote(userPrincipalName), quote(excludeID)))
	q.Set("$orderby", "activityDateTime desc")

	var env listEnvelope[models.RiskDetection]
	if err := c.do(ctx, http.MethodGet, "/identityProtection/riskDetections", q, nil, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// GetRiskyUser fetches the aggregated risk record for the user, or nil when
// none exists.
func (c *Client) GetRiskyUser(ctx context.Context, userPrincipalName string) (*models.RiskyUser, error) {
	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("userPrincipalName eq '%s'", quote(userPrincipalName)))

	var env listEnvelope[models.RiskyUser]
	if err := c.do(ctx, http.MethodGet, "/identityProtection/riskyUsers", q, nil, &env); err != nil {
		return nil, err
	}
	if len(env.Value) == 0 {
		return nil, nil
	}
	return &env.Value[0], nil
}

// ListSubscriptions returns all webhook subscriptions owned by this app
// registration.
func (c *Client) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var env listEnvelope[models.Subscription]
	if err := c.do(ctx, http.MethodGet, "/subscriptions", nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Value, nil
}

// CreateSubscription registers a new webhook subscription.
func (c *Client) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	var created models.Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", nil, sub, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

type subscriptionRenewal struct {
	ExpirationDateTime time.Time `json:"expirationDateTime"`
}

// RenewSubscription extends a subscription's expiration.
func (c *Client) RenewSubscription(ctx context.Context, id string, expires time.Time) error {
	return c.do(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(id), nil, subscriptionRenewal{ExpirationDateTime: expires}, nil)
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil, nil)
}
