// Package repositories implements SQLite persistence for export history and authentication events.
//
// Key Implementations:
//   - [ExportRunRepository] : export runs and their per-resource outcomes, used by the export engine
//   - [AuthEventRepository] : interactive logins and silent refreshes, used by the token manager
//
// Both repositories run against a database opened with [shared.NewDatabase] and migrated with
// [shared.RunMigrations]. Writes take a context so a cancelled command stops touching the database.
package repositories
