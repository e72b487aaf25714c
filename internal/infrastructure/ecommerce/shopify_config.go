package ecommerce

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultShopifyAPIVersion is the Admin REST API version pulled from
	DefaultShopifyAPIVersion = "2024-10"
	// DefaultShopifyPageSize is the maximum page size the Admin API accepts
	DefaultShopifyPageSize = 250
	// ShopifyAccessTokenHeader carries the per-tenant access credential
	ShopifyAccessTokenHeader = "X-Shopify-Access-Token"
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingAPISecret  = errors.New("shopify: api secret is required")
	ErrShopifyConfigInvalidPageSize   = errors.New("shopify: page size must be between 1 and 250")
	ErrShopifyConfigInvalidScheme     = errors.New("shopify: scheme must be http or https")
	ErrShopifyConfigMissingAPIVersion = errors.New("shopify: api version is required")
)

// ShopifyConfig holds configuration for the Shopify Admin REST API
type ShopifyConfig struct {
	// APIKey is the app client id, used as the session token audience
	APIKey string
	// APISecret signs webhooks and session tokens
	APISecret string
	// APIVersion is the dated Admin API version
	APIVersion string
	// Scheme is https in production; tests point it at a plain-http fake
	Scheme string
	// PageSize is the limit query parameter
	PageSize int
	// Timeout bounds a single page request
	Timeout time.Duration
}

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(apiKey, apiSecret string) *ShopifyConfig {
	return &ShopifyConfig{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		APIVersion: DefaultShopifyAPIVersion,
		Scheme:     "https",
		PageSize:   DefaultShopifyPageSize,
		Timeout:    30 * time.Second,
	}
}

// Validate validates the Shopify configuration
func (c *ShopifyConfig) Validate() error {
	if c.APISecret == "" {
		return ErrShopifyConfigMissingAPISecret
	}
	if c.APIVersion == "" {
		return ErrShopifyConfigMissingAPIVersion
	}
	if c.PageSize < 1 || c.PageSize > DefaultShopifyPageSize {
		return ErrShopifyConfigInvalidPageSize
	}
	if c.Scheme != "https" && c.Scheme != "http" {
		return ErrShopifyConfigInvalidScheme
	}
	return nil
}

// BaseURL returns the Admin API root for a shop domain
func (c *ShopifyConfig) BaseURL(domain string) string {
	return fmt.Sprintf("%s://%s/admin/api/%s", c.Scheme, domain, c.APIVersion)
}
