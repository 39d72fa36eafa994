// Defines shared service dependencies for handlers.

package handlers

import (
	"github.com/kennan/folio/internal/storage"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Projects *content.ProjectService
	Gate     *identity.Gate
	Uploads  *uploads.Store
	History  *content.GitHistory // may be nil
}

// Config holds configuration values needed by handlers.
type Config struct {
	BaseURL      string
	Version      string
	Quotas       storage.ServerQuotas
	SecureCookie bool
}
