package api

import (
	"github.com/cern-fcc/datacatalog/internal/auth"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/config"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/internal/navigation"
	"github.com/cern-fcc/datacatalog/internal/search"
)

// Server bundles every core collaborator the HTTP layer dispatches to. It
// holds no database handle of its own — each field already wraps the
// shared pool. Search/Navigation/Ingest are built once by main.go from the
// startup schema analysis; calling catalog.Inspector.Invalidate does not
// rebuild them.
type Server struct {
	Inspector  *catalog.Inspector
	Search     *search.Executor
	Navigation *navigation.Service
	Ingest     *ingest.Engine
	Authn      auth.Authenticator
	Config     *config.Config
}
