package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/escrow-ledger"
)

const (
	defaultTimeout = 3 * time.Second
)

// Client talks to one ledger node.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	endpoint  string
}

// New creates a client for the node at endpoint, e.g. "https://ledger.example.com".
func New(endpoint string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: "escrow-ledger-client",
		endpoint:  strings.TrimSuffix(endpoint, "/"),
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// APIError is a non-2xx response from the node.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("escrow: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("escrow: unexpected status code %d: %s", e.Status, e.Message)
}

func (c *Client) HttpRequest(ctx context.Context, method, path string, body any, header http.Header, response any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	slog.DebugContext(ctx, "escrow request", slog.String("method", method), slog.String("url", req.URL.String()), slog.String("module", "client"))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) WellKnown(ctx context.Context) (escrow.WellKnownEscrow, error) {
	cacheKey := "wellknown:" + c.endpoint
	if x, found := c.cache.Get(cacheKey); found {
		return x.(escrow.WellKnownEscrow), nil
	}

	var wk escrow.WellKnownEscrow
	if err := c.HttpRequest(ctx, http.MethodGet, "/.well-known/escrow", nil, nil, &wk); err != nil {
		return escrow.WellKnownEscrow{}, err
	}

	c.cache.Set(cacheKey, wk, cache.DefaultExpiration)
	return wk, nil
}

// Commit signs document with privatekey and submits it.
func (c *Client) Commit(ctx context.Context, document escrow.Document[any], privatekey string) (escrow.Receipt, error) {
	raw, err := json.Marshal(document)
	if err != nil {
		return escrow.Receipt{}, err
	}

	sc, err := escrow.SignCommand(raw, privatekey)
	if err != nil {
		return escrow.Receipt{}, err
	}

	return c.CommitSigned(ctx, sc)
}

func (c *Client) CommitSigned(ctx context.Context, sc escrow.SignedCommand) (escrow.Receipt, error) {
	var receipt escrow.Receipt
	if err := c.HttpRequest(ctx, http.MethodPost, "/commit", sc, nil, &receipt); err != nil {
		return escrow.Receipt{}, err
	}

	c.cache.Delete("campaign:" + receipt.Campaign)
	return receipt, nil
}

// GetCampaign reads a campaign view, cached for a short time.
func (c *Client) GetCampaign(ctx context.Context, slot string) (escrow.CampaignView, error) {
	cacheKey := "campaign:" + slot
	if x, found := c.cache.Get(cacheKey); found {
		return x.(escrow.CampaignView), nil
	}

	var view escrow.CampaignView
	if err := c.HttpRequest(ctx, http.MethodGet, "/campaign/"+url.PathEscape(slot), nil, nil, &view); err != nil {
		return escrow.CampaignView{}, err
	}

	c.cache.Set(cacheKey, view, 10*time.Second)
	return view, nil
}

func (c *Client) ListContributors(ctx context.Context, slot string) ([]escrow.ContributorView, error) {
	var views []escrow.ContributorView
	err := c.HttpRequest(ctx, http.MethodGet, "/campaign/"+url.PathEscape(slot)+"/contributors", nil, nil, &views)
	return views, err
}

func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.HttpRequest(ctx, http.MethodGet, "/balance/"+url.PathEscape(address), nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Positions lists the contributor records of the identity the token was issued by.
func (c *Client) Positions(ctx context.Context, token string) ([]escrow.ContributorView, error) {
	var views []escrow.ContributorView
	header := http.Header{"Authorization": {"Bearer " + token}}
	err := c.HttpRequest(ctx, http.MethodGet, "/api/v1/positions", nil, header, &views)
	return views, err
}
