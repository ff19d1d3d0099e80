package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/applications"
	"patent-backend/internal/attorneys"
	"patent-backend/internal/documents"
	"patent-backend/internal/notifications"
	"patent-backend/internal/queue"
	"patent-backend/internal/services/health"
	"patent-backend/internal/shared/config"
	"patent-backend/internal/shared/server"
	"patent-backend/internal/shared/storage/db"
	"patent-backend/internal/shared/storage/object"
	localstore "patent-backend/internal/shared/storage/object/local"
	s3store "patent-backend/internal/shared/storage/object/s3"
	"patent-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Store         object.ObjectStore
	Events        queue.Client
	Applications  *applications.Service
	Attorneys     *attorneys.Service
	Documents     *documents.Service
	Notifications *notifications.Service
	Health        *health.Service
}

// Build prepares dependencies and routes for the given configuration.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller supplied context for startup I/O.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Health: health.NewService(sqlDB),
	}
	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:               cfg,
		Health:               app.Health,
		ApplicationsHandler:  applications.NewHandler(app.Applications),
		AttorneysHandler:     attorneys.NewHandler(app.Attorneys),
		DocumentsHandler:     documents.NewHandler(app.Documents),
		NotificationsHandler: notifications.NewHandler(app.Notifications),
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err == nil && !db.IsLambdaRuntime() {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database unavailable", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(ctx context.Context, app *App) error {
	var (
		appRepo      applications.Repo
		attorneyRepo attorneys.Repo
		docRepo      documents.Repo
		noteRepo     notifications.Repo
	)
	if app.DB != nil {
		appRepo = &applications.PGRepo{DB: app.DB}
		attorneyRepo = &attorneys.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
		noteRepo = &notifications.PGRepo{DB: app.DB}
	} else {
		appRepo = applications.NewMemoryRepo()
		attorneyRepo = attorneys.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
		noteRepo = notifications.NewMemoryRepo()
	}

	app.Notifications = notifications.NewService(noteRepo)
	events, err := buildEvents(ctx, app.Config, app.Notifications)
	if err != nil {
		return err
	}
	app.Events = events

	app.Attorneys = attorneys.NewService(attorneyRepo)
	app.Applications = applications.NewService(appRepo, app.Attorneys, events)

	maxBytes := int64(app.Config.MaxUploadMB) << 20
	app.Documents = documents.NewService(app.Store, docRepo, app.Applications, maxBytes)
	return nil
}

// buildEvents publishes to SQS when a queue is configured and otherwise
// delivers notifications in process.
func buildEvents(ctx context.Context, cfg config.Config, notes *notifications.Service) (queue.Client, error) {
	if cfg.EventsQueueURL == "" {
		return notes.InlineClient(), nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.EventsQueueURL, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	telemetry.Info("bootstrap.events_sqs", map[string]any{"queue_url": cfg.EventsQueueURL})
	return client, nil
}
