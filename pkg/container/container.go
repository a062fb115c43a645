package container

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"grimoire-backend/internal/config"
	infraCache "grimoire-backend/internal/infrastructure/cache"
	"grimoire-backend/internal/infrastructure/database"
	"grimoire-backend/internal/infrastructure/queue"
	"grimoire-backend/internal/infrastructure/storage"
	"grimoire-backend/pkg/cache"
	"grimoire-backend/pkg/jwt"

	bookHandler "grimoire-backend/internal/domains/book/handler"
	bookRepo "grimoire-backend/internal/domains/book/repository"
	bookService "grimoire-backend/internal/domains/book/service"

	"grimoire-backend/internal/domains/user"
	userHandler "grimoire-backend/internal/domains/user/handler"
	userRepo "grimoire-backend/internal/domains/user/repository"
	userService "grimoire-backend/internal/domains/user/service"
)

const imageDrainTimeout = 15 * time.Second

// Container holds every long lived dependency of the API and the worker.
type Container struct {
	// Infrastructure
	Config         *config.Config
	DB             *database.PostgresDB
	Cache          cache.Cache // nil when Redis is disabled or unreachable
	JWTManager     *jwt.Manager
	Storage        storage.ObjectStorage
	ImageProcessor *storage.ImageProcessor
	QueueClient    *queue.Client // nil when QUEUE_ENABLED=false

	// Repositories
	UserRepo user.Repository
	BookRepo bookRepo.BookRepository

	// Services
	UserService  user.Service
	BookService  bookService.BookService
	ImageService bookService.ImageService

	// Handlers
	UserHandler *userHandler.UserHandler
	BookHandler *bookHandler.Handler
}

// NewContainer loads the configuration and builds the dependency graph,
// infrastructure first.
func NewContainer(ctx context.Context) (*Container, error) {
	log.Info().Msg("Initializing DI container...")

	c := &Container{}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	if err := c.initDatabase(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	c.initCache(ctx)

	if err := c.initStorage(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret, cfg.JWT.TokenTTL)

	if cfg.Queue.Enabled {
		c.QueueClient = queue.NewClient(c.RedisClientOpt())
		log.Info().Msg("Task queue enabled")
	}

	c.initRepositories()
	c.initServices()
	c.initHandlers()

	log.Info().Str("environment", cfg.App.Environment).Msg("DI container initialized")
	return c, nil
}

// RedisClientOpt is the asynq connection shared by the client, server and scheduler.
func (c *Container) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}
}

func (c *Container) initDatabase(ctx context.Context) error {
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.Connect(connectCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	if c.Config.App.AutoMigrate {
		if err := db.Migrate(ctx, "up"); err != nil {
			return fmt.Errorf("auto migrate failed: %w", err)
		}
	}
	return nil
}

// initCache connects Redis. Failure is not fatal: the API runs uncached.
func (c *Container) initCache(ctx context.Context) {
	if !c.Config.Redis.Enabled {
		log.Info().Msg("Redis cache disabled")
		return
	}

	redisCache := infraCache.NewRedisCache(
		c.Config.Redis.Host,
		c.Config.Redis.Password,
		c.Config.Redis.DB,
	)

	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Redis connection failed (non-critical), running without cache")
			_ = rc.Close()
			return
		}
	}

	c.Cache = redisCache
	log.Info().Str("host", c.Config.Redis.Host).Msg("Redis connected")
}

func (c *Container) initStorage(ctx context.Context) error {
	c.ImageProcessor = storage.NewImageProcessor(c.Config.Storage.MaxUploadBytes)

	switch c.Config.Storage.Driver {
	case "minio":
		s, err := storage.NewMinIOStorage(ctx, c.Config.MinIO)
		if err != nil {
			return fmt.Errorf("failed to init minio storage: %w", err)
		}
		c.Storage = s
	default:
		s, err := storage.NewLocalStorage(c.Config.Storage.LocalDir)
		if err != nil {
			return fmt.Errorf("failed to init local storage: %w", err)
		}
		c.Storage = s
	}

	log.Info().Str("driver", c.Config.Storage.Driver).Msg("Image storage ready")
	return nil
}

func (c *Container) initRepositories() {
	pool := c.DB.Pool

	c.UserRepo = userRepo.NewPostgresRepository(pool)
	c.BookRepo = bookRepo.NewPostgresRepository(pool)
}

func (c *Container) initServices() {
	c.UserService = userService.NewUserService(c.UserRepo, c.JWTManager, bcrypt.DefaultCost)

	// a nil *queue.Client must not become a non-nil interface
	var enqueuer bookService.TaskEnqueuer
	if c.QueueClient != nil {
		enqueuer = c.QueueClient
	}
	c.ImageService = bookService.NewImageService(c.BookRepo, c.Storage, enqueuer)
	c.BookService = bookService.NewBookService(c.BookRepo, c.ImageService, c.Cache)
}

func (c *Container) initHandlers() {
	c.UserHandler = userHandler.NewUserHandler(c.UserService)
	c.BookHandler = bookHandler.NewHandler(c.BookService, c.ImageService, c.Storage)
}

// Cleanup releases resources in reverse construction order. Safe on a
// partially built container.
func (c *Container) Cleanup() {
	log.Info().Msg("Cleaning up container resources...")

	if c.ImageService != nil {
		done := make(chan struct{})
		go func() {
			c.ImageService.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(imageDrainTimeout):
			log.Warn().Msg("Timed out waiting for pending image deletions")
		}
	}

	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close queue client")
		}
	}

	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis")
			}
		}
	}

	if c.DB != nil {
		_ = c.DB.Close()
	}

	log.Info().Msg("Container cleanup completed")
}
