//go:build wireinject

package app

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/kapu/bandhub-sync-go/internal/config"
)

//go:generate go run github.com/google/wire/cmd/wire@v0.7.0

// InitializeRuntime assembles the full daemon: storage, quota governance,
// sync services, and the HTTP surface.
func InitializeRuntime(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*Runtime, func(), error) {
	wire.Build(RuntimeSet)
	return nil, nil, nil
}
