package http

import (
	"github.com/nats-io/nats.go"

	"github.com/lertxundi/anchorage/internal/adapters/postgres"
	"github.com/lertxundi/anchorage/internal/adapters/valkey"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService
	Anchors  ports.AnchorQueryRepository
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
