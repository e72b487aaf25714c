// Package integration contains the Integration bounded context.
// This context keeps a local, multi-tenant copy of commerce records pulled from
// (and pushed by) an external e-commerce platform.
//
// Key concepts:
//   - Tenant: one connected store with its credential, time zone and sync state machine
//   - SyncedEntity: Product, Variant, Order, LineItem, Customer keyed by (tenant_id, upstream_id)
//   - SyncError / WebhookEvent: append-only audit trail
//   - TriggerWindow: the daily local-time window in which a tenant is due for a pull
//   - UpstreamClient / PageIterator: ports for walking paged upstream collections
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
