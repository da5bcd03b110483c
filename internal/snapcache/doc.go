// Package snapcache keeps the last good job and subscription snapshots in a
// small SQLite database so the live view can start (and `jobs list --offline`
// can answer) while the service is unreachable.
//
// Only one dlpanel process writes at a time. The writer holds a file lock next
// to the database; any other process opens the same file read-only and its
// saves become no-ops.
package snapcache
