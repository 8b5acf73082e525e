package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
)

const (
	defaultBaseURL = "https://api.mercadopago.com"
	defaultTimeout = 10 * time.Second

	// maxResponseBytes bounds what we read from the API.
	maxResponseBytes = 1 << 20
)

type ClientConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Client is a minimal Mercado Pago REST client for status queries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   strings.TrimSpace(cfg.AccessToken),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*paymentdomain.MercadoPagoPayment, error) {
	var payment paymentdomain.MercadoPagoPayment
	if err := c.get(ctx, "/v1/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) GetPreference(ctx context.Context, preferenceID string) (*paymentdomain.MercadoPagoPreference, error) {
	var preference paymentdomain.MercadoPagoPreference
	if err := c.get(ctx, "/checkout/preferences/"+url.PathEscape(preferenceID), nil, &preference); err != nil {
		return nil, err
	}
	return &preference, nil
}

func (c *Client) SearchPayments(ctx context.Context, externalReference string) ([]paymentdomain.MercadoPagoPayment, error) {
	query := url.Values{}
	query.Set("external_reference", externalReference)
	query.Set("sort", "date_created")
	query.Set("criteria", "desc")

	var page struct {
		Results []paymentdomain.MercadoPagoPayment `json:"results"`
	}
	if err := c.get(ctx, "/v1/payments/search", query, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", paymentdomain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: GET %s returned %d", paymentdomain.ErrProviderUnavailable, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", paymentdomain.ErrProviderUnavailable, err)
	}
	return nil
}
