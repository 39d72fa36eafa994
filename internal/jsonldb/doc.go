// Package jsonldb provides a generic, concurrent-safe, JSONL-backed table.
//
// A [Table] keeps every row in memory and mirrors it to a JSON Lines file,
// one row per line. Appends are O(1) on disk; other mutations rewrite the file
// through a temporary file renamed over the original.
//
// [Table.Modify] holds the write lock for the entire read-modify-write
// operation, so it never needs a retry loop.
package jsonldb
