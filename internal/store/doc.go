// Package store defines the persistence contract for ingested pages.
// Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store
