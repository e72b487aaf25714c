// Package ingestion holds the application services that move data from the
// upstream platform into the local store: the reconciler, the per-entity
// delta sync workers, the tenant run orchestration, the webhook dispatcher
// and the read-only query service.
package ingestion
