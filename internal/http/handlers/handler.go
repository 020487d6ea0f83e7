package handlers

import (
	"github.com/Kevin-ecometrics/vortice/internal/config"
	"github.com/Kevin-ecometrics/vortice/internal/queue"
	"github.com/Kevin-ecometrics/vortice/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Store  *storage.ObjectStore
}
