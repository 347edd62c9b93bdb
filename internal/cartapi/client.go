package cartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/poslane/pkg/config"
	pkgerrors "github.com/angelmondragon/poslane/pkg/errors"
	"github.com/angelmondragon/poslane/pkg/types"
	"github.com/google/uuid"
)

// API is the cart service surface the terminal consumes. Components take
// this interface so tests can stub the backend.
type API interface {
	ListActiveCarts(ctx context.Context) ([]Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (*Cart, error)
	CreateCart(ctx context.Context, storeID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, input UpdateItemInput) (*Cart, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	Checkout(ctx context.Context, cartID uuid.UUID, input CheckoutInput) (*Invoice, error)
	LookupByBarcode(ctx context.Context, code string, strict bool) (*LookupResult, error)
}

// Client talks to the remote cart service over its REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a cart service client from backend config.
func NewClient(cfg config.BackendConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, fmt.Errorf("backend api token is required")
	}
	return &Client{
		baseURL: base,
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Ping verifies the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/live", nil, nil)
}

// ListActiveCarts fetches every cart the backend still considers active.
func (c *Client) ListActiveCarts(ctx context.Context) ([]Cart, error) {
	var carts []Cart
	if err := c.do(ctx, http.MethodGet, "/api/v1/carts?status=active", nil, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

// GetCart fetches one cart; deleted or checked-out carts come back NotFound.
func (c *Client) GetCart(ctx context.Context, id uuid.UUID) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/api/v1/carts/"+id.String(), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart opens a new active cart in the given store.
func (c *Client) CreateCart(ctx context.Context, storeID uuid.UUID) (*Cart, error) {
	payload := map[string]string{"store_id": storeID.String()}
	var cart Cart
	if err := c.do(ctx, http.MethodPost, "/api/v1/carts", payload, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem adds or increments a unit; idempotent by barcode backend-side.
func (c *Client) AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*AddItemResult, error) {
	var result AddItemResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/carts/"+cartID.String()+"/items", input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateItem adjusts quantity or the manual unit price.
func (c *Client) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, input UpdateItemInput) (*Cart, error) {
	var cart Cart
	path := "/api/v1/carts/" + cartID.String() + "/items/" + itemID.String()
	if err := c.do(ctx, http.MethodPatch, path, input, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// DeleteItem removes an item line.
func (c *Client) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	path := "/api/v1/carts/" + cartID.String() + "/items/" + itemID.String()
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteCart removes a cart; an already-deleted cart yields NotFound, which
// callers treat as success.
func (c *Client) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/carts/"+cartID.String(), nil, nil)
}

// Checkout converts the cart into an invoice.
func (c *Client) Checkout(ctx context.Context, cartID uuid.UUID, input CheckoutInput) (*Invoice, error) {
	var invoice Invoice
	if err := c.do(ctx, http.MethodPost, "/api/v1/carts/"+cartID.String()+"/checkout", input, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// LookupByBarcode resolves a scanned code. Strict mode matches physical unit
// barcodes only, never SKUs or names.
func (c *Client) LookupByBarcode(ctx context.Context, code string, strict bool) (*LookupResult, error) {
	query := url.Values{}
	query.Set("barcode", code)
	if strict {
		query.Set("strict", "true")
	}
	var result LookupResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/products/lookup?"+query.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart service unreachable")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response data")
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var envelope types.ErrorEnvelope
	message := ""
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		message = envelope.Error.Message
	}

	code := codeForStatus(resp.StatusCode)
	if message == "" {
		message = pkgerrors.MetadataFor(code).PublicMessage
	}

	typed := pkgerrors.New(code, message)
	if envelope.Error.Details != nil {
		typed = typed.WithDetails(envelope.Error.Details)
	}
	return typed
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		return pkgerrors.CodeConflict
	case status == http.StatusGone:
		return pkgerrors.CodeUnavailable
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	case status == http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case status >= 500:
		return pkgerrors.CodeDependency
	default:
		return pkgerrors.CodeInternal
	}
}
