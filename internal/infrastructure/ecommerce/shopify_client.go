package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/logger"
)

// Upstream collection names
const (
	collectionProducts  = "products"
	collectionOrders    = "orders"
	collectionCustomers = "customers"
)

// ShopifyClient pulls paged collections from the Shopify Admin REST API.
// It implements integration.UpstreamClient.
type ShopifyClient struct {
	config     *ShopifyConfig
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewShopifyClient creates a client with its own resty instance
func NewShopifyClient(config *ShopifyConfig, logger *zap.Logger) (*ShopifyClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	httpClient := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "storesync/1.0")
	return NewShopifyClientWithResty(config, httpClient, logger), nil
}

// NewShopifyClientWithResty creates a client around an existing resty instance
func NewShopifyClientWithResty(config *ShopifyConfig, httpClient *resty.Client, logger *zap.Logger) *ShopifyClient {
	return &ShopifyClient{
		config:     config,
		httpClient: httpClient,
		logger:     logger.Named("shopify"),
	}
}

// CollectionURL builds the first-page URL of a delta pull.
// A nil since omits updated_at_min and pulls the full collection.
func (c *ShopifyClient) CollectionURL(domain, collection string, since *time.Time) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.config.PageSize))
	if since != nil {
		q.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%s/%s.json?%s", c.config.BaseURL(domain), collection, q.Encode())
}

// Fetcher returns a PageFetcher authenticated as the tenant
func (c *ShopifyClient) Fetcher(tenant *integration.Tenant) PageFetcher {
	return &tenantFetcher{
		client:   c,
		token:    tenant.AccessCredential,
		tenantID: tenant.ID,
	}
}

// ProductPages implements integration.UpstreamClient
func (c *ShopifyClient) ProductPages(tenant *integration.Tenant, since *time.Time) integration.PageIterator[integration.Product] {
	cursor := NewCursor(c.Fetcher(tenant), c.CollectionURL(tenant.Domain, collectionProducts, since))
	return newPageIterator(cursor, decodeProducts, func(p ShopifyProduct) integration.Product {
		return MapProduct(tenant.ID, p)
	})
}

// OrderPages implements integration.UpstreamClient.
// status=any is required, otherwise the API only returns open orders.
func (c *ShopifyClient) OrderPages(tenant *integration.Tenant, since *time.Time) integration.PageIterator[integration.Order] {
	first := c.CollectionURL(tenant.Domain, collectionOrders, since) + "&status=any"
	cursor := NewCursor(c.Fetcher(tenant), first)
	return newPageIterator(cursor, decodeOrders, func(o ShopifyOrder) integration.Order {
		return MapOrder(tenant.ID, o)
	})
}

// CustomerPages implements integration.UpstreamClient
func (c *ShopifyClient) CustomerPages(tenant *integration.Tenant, since *time.Time) integration.PageIterator[integration.Customer] {
	cursor := NewCursor(c.Fetcher(tenant), c.CollectionURL(tenant.Domain, collectionCustomers, since))
	return newPageIterator(cursor, decodeCustomers, func(cu ShopifyCustomer) integration.Customer {
		return MapCustomer(tenant.ID, cu)
	})
}

// tenantFetcher issues page requests with one tenant's access token
type tenantFetcher struct {
	client   *ShopifyClient
	token    string
	tenantID uuid.UUID
}

func (f *tenantFetcher) FetchPage(ctx context.Context, pageURL string) (*RawPage, error) {
	start := time.Now()
	resp, err := f.client.httpClient.R().
		SetContext(ctx).
		SetHeader(ShopifyAccessTokenHeader, f.token).
		Get(pageURL)
	if err != nil {
		return nil, &integration.UpstreamFetchError{URL: redactURL(pageURL), Err: err}
	}

	f.client.logger.Debug("Fetched upstream page",
		logger.Tenant(f.tenantID),
		zap.String("url", redactURL(pageURL)),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.IsError() {
		return nil, &integration.UpstreamFetchError{
			URL:        redactURL(pageURL),
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	return &RawPage{
		URL:  pageURL,
		Body: resp.Body(),
		Next: ParseNextLink(resp.Header().Get("Link")),
	}, nil
}

// redactURL drops the query string, which may carry opaque page tokens
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}

func decodeProducts(body []byte) ([]ShopifyProduct, error) {
	var env productsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode products page: %w", err)
	}
	return env.Products, nil
}

func decodeOrders(body []byte) ([]ShopifyOrder, error) {
	var env ordersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode orders page: %w", err)
	}
	return env.Orders, nil
}

func decodeCustomers(body []byte) ([]ShopifyCustomer, error) {
	var env customersEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode customers page: %w", err)
	}
	return env.Customers, nil
}
