// Package database provides the PostgreSQL connection pool and schema for the
// notification_events sink.
package database
