// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL for every storefront table. Each statement is
// idempotent, so it is applied on every start.
//
//go:embed migrations/001_schema.sql
var Schema string
