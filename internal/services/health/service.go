package health

import (
	"context"
	"database/sql"
	"time"

	"patent-backend/internal/shared/storage/db"
	"patent-backend/internal/shared/telemetry"
)

const pingTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. A nil database means the
// process runs on in-memory repositories.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Status reports overall health and the database state.
func (s *Service) Status(ctx context.Context) Report {
	if s == nil || s.DB == nil {
		return Report{OK: true, Database: "memory"}
	}
	if err := db.Ping(ctx, s.DB, pingTimeout); err != nil {
		telemetry.Warn("health.db_unreachable", map[string]any{"error": err.Error()})
		return Report{OK: false, Database: "down"}
	}
	return Report{OK: true, Database: "up"}
}
