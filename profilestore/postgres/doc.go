// Package postgres implements identity.ProfileStore on PostgreSQL through the
// pgx database/sql driver.
//
// Accounts live in goguard_accounts. Content ownership is moved by updating
// the owner columns of the host's content tables; ContentTables describes
// them and DefaultContentTables matches the bundled schema.
package postgres
