// Package database provides pgx connection pooling for the recorder.
package database
