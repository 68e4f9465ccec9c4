// Package bootstrap assembles the application from its configuration
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/libris/internal/app/controllers"
	appMigrations "github.com/yigit/libris/internal/app/migrations"
	appRepos "github.com/yigit/libris/internal/app/repositories"
	"github.com/yigit/libris/internal/app/repositories/memory"
	"github.com/yigit/libris/internal/app/repositories/postgres"
	appRoutes "github.com/yigit/libris/internal/app/routes"
	appServices "github.com/yigit/libris/internal/app/services"
	"github.com/yigit/libris/internal/config"
	"github.com/yigit/libris/internal/db"
	appMiddleware "github.com/yigit/libris/internal/middleware"
	pkgAuth "github.com/yigit/libris/internal/pkg/auth"
	"github.com/yigit/libris/internal/pkg/clock"
	"github.com/yigit/libris/internal/pkg/filestorage"
	"github.com/yigit/libris/internal/pkg/helpers"
	"github.com/yigit/libris/internal/pkg/logger"
	"github.com/yigit/libris/internal/pkg/revocation"
	"github.com/yigit/libris/internal/pkg/validation"
	"github.com/yigit/libris/internal/seed"
)

// DefaultConfigPath is used when no --config flag is given
const DefaultConfigPath = "configs/config.yaml"

// Store is the persistence backend selected by database.driver
type Store struct {
	Repos *appRepos.Repositories
	// DB is nil for the memory driver
	DB *db.PostgresDB
}

// Close releases the database pool, if any
func (s *Store) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config         *config.Config
	Logger         zerolog.Logger
	Store          *Store
	JWTService     *pkgAuth.JWTService
	Revocations    revocation.List
	FileStorage    *filestorage.LocalStorage
	Services       *appServices.Services
	Controllers    appRoutes.Controllers
	AuthMiddleware *appMiddleware.AuthMiddleware

	redis *redis.Client
}

// Close releases every resource held by the dependencies
func (d *Dependencies) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if d.Store != nil {
		d.Store.Close()
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logger.Configure(logger.Config{
		Level:  logger.LogLevel(cfg.Logging.Level),
		Pretty: logger.ParseFormat(cfg.Logging.Format),
	})

	lgr := logger.Get()
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStore opens the configured store. For PostgreSQL the migrations are
// applied first when migrate is set.
func SetupStore(ctx context.Context, cfg *config.Config, migrate bool, lgr zerolog.Logger) (*Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		lgr.Warn().Msg("Using the in-memory store; data is lost on exit")
		return &Store{Repos: memory.NewRepositories()}, nil
	}

	lgr.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	if migrate {
		if err := RunMigrations(ctx, database, cfg, lgr); err != nil {
			database.Close()
			return nil, err
		}
	}

	return &Store{Repos: postgres.NewRepositories(database), DB: database}, nil
}

// RunMigrations applies the SQL files of database.migrations_dir
func RunMigrations(ctx context.Context, database *db.PostgresDB, cfg *config.Config, lgr zerolog.Logger) error {
	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); err != nil {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, lgr.With().Str("component", "migrator").Logger())
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return fmt.Errorf("database migrations failed: %w", err)
	}
	return nil
}

// SeedDefaultData creates the configured admin and optional sample catalog
func SeedDefaultData(ctx context.Context, cfg *config.Config, store *Store, sampleBooks bool, lgr zerolog.Logger) error {
	admin := seed.Admin{
		Username: cfg.Seed.AdminUsername,
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
	}
	return seed.CreateDefaultData(ctx, store.Repos, admin, sampleBooks || cfg.Seed.SampleBooks, lgr)
}

// setupRevocationList picks the redis backend when enabled
func setupRevocationList(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (revocation.List, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Redis disabled, revoked tokens are kept in memory")
		return revocation.NewMemoryList(), nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := revocation.NewRedisClient(pingCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to redis")
		return nil, nil, err
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis revocation list connected")
	return revocation.NewRedisList(client), client, nil
}

// RegisterValidators adds the custom binding tags to gin's validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return validation.RegisterBindingRules(v)
}

// BuildDependencies initializes services, controllers and middleware on
// top of an opened store.
func BuildDependencies(ctx context.Context, cfg *config.Config, store *Store, clk clock.Clock, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: lgr, Store: store}

	if err := RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	var err error
	deps.FileStorage, err = filestorage.NewLocalStorage(cfg.Server.StoragePath)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize file storage")
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	deps.Revocations, deps.redis, err = setupRevocationList(ctx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up token revocation: %w", err)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 720*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	if clk == nil {
		clk = clock.SystemClock{}
	}
	deps.Services = appServices.NewServices(store.Repos, deps.JWTService, deps.Revocations, deps.FileStorage, clk, lgr)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.Services.Auth)
	deps.Controllers = appRoutes.Controllers{
		Auth:        appControllers.NewAuthController(deps.Services.Auth, lgr),
		Books:       appControllers.NewBookController(deps.Services.Books, clk),
		Circulation: appControllers.NewCirculationController(deps.Services.Circulation),
		Users:       appControllers.NewUserController(deps.Services.Users),
		CSRF:        appControllers.NewCSRFController(cfg.IsProduction()),
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger())

	router.Static(cfg.Server.BaseURL, deps.FileStorage.BasePath())
	appRoutes.SetupSwagger(router)
	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware, cfg.Server.CSRFEnabled)

	return router
}
