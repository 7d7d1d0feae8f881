// Package database opens the PostgreSQL pool used by the notification journal.
package database
