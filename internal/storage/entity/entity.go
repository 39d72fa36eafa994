// Package entity defines the portfolio records persisted by the storage
// packages and the rules that keep them consistent: id slugs, categories and
// scene references.
package entity
