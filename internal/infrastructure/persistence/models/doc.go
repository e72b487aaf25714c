// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and the SyncedModel reconciliation columns
//   - tenant.go: tenant registry
//   - catalog.go: products and variants
//   - orders.go: orders and line items
//   - customer.go: customers
//   - audit.go: sync errors and webhook events
package models
