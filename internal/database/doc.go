// Package database builds the PostgreSQL connection pool used by the
// checkpoint store.
package database
