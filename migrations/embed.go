// Package migrations встраивает SQL-схему в бинарник.
package migrations

import "embed"

// FS содержит миграции Postgres. Формат имени: {version}_{name}.sql.
//
//go:embed *.sql
var FS embed.FS
