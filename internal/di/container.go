package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/handlers"
	"github.com/boutique-admin/api/internal/platform/auth"
	"github.com/boutique-admin/api/internal/platform/config"
	"github.com/boutique-admin/api/internal/platform/database"
	"github.com/boutique-admin/api/internal/platform/idempotency"
	"github.com/boutique-admin/api/internal/platform/jobs"
	"github.com/boutique-admin/api/internal/platform/observability"
	"github.com/boutique-admin/api/internal/repositories"
	"github.com/boutique-admin/api/internal/repositories/memory"
	"github.com/boutique-admin/api/internal/repositories/postgres"
	"github.com/boutique-admin/api/internal/services"
)

const redisKeyPrefix = "boutique:idempotency:"

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Categories services.CategoryService
	Brands     services.BrandService
	Products   services.ProductService
	Orders     services.OrderService
	System     services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Idempotency  idempotency.Store
	Events       services.OrderEventPublisher
	Currency     domain.Currency
	// Auth is nil unless operator token verification is configured.
	Auth *auth.Authenticator

	logger  *zap.Logger
	build   services.BuildInfo
	closers []func(context.Context) error
}

// Option customises container construction.
type Option func(*options)

type options struct {
	registry   repositories.Registry
	store      idempotency.Store
	events     services.OrderEventPublisher
	logger     *zap.Logger
	build      services.BuildInfo
	clock      func() time.Time
	migrations bool
}

// WithRegistry supplies a pre-built registry instead of opening the configured driver.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithIdempotencyStore overrides the store chosen from the Redis configuration.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithEventPublisher overrides the Pub/Sub publisher chosen from the events configuration.
func WithEventPublisher(pub services.OrderEventPublisher) Option {
	return func(o *options) {
		o.events = pub
	}
}

// WithLogger sets the base logger handed to services and middleware.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo records version metadata reported by the health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *options) {
		o.build = info
	}
}

// WithClock injects a custom clock primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithMigrations forces pending migrations to run after connecting, regardless of configuration.
func WithMigrations() Option {
	return func(o *options) {
		o.migrations = true
	}
}

// NewContainer constructs the runtime dependencies. Production wiring opens the configured
// database, Redis and Pub/Sub clients, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (_ *Container, err error) {
	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cur, err := domain.LookupCurrency(cfg.Catalog.Currency)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Currency: cur,
		logger:   o.logger,
		build:    o.build,
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	var redisClient *redis.Client
	if o.store == nil && strings.TrimSpace(cfg.Redis.Addr) != "" {
		redisClient, err = idempotency.ConnectRedis(ctx, idempotency.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return redisClient.Close() })
	}

	c.Repositories = o.registry
	if c.Repositories == nil {
		reg, err := c.openRegistry(ctx, cfg, redisClient, o.migrations || cfg.Database.MigrateOnStart)
		if err != nil {
			return nil, err
		}
		c.Repositories = reg
	}

	c.Idempotency = o.store
	if c.Idempotency == nil {
		if redisClient != nil {
			store, err := idempotency.NewRedisStore(redisClient, idempotency.WithKeyPrefix(redisKeyPrefix))
			if err != nil {
				return nil, fmt.Errorf("build redis idempotency store: %w", err)
			}
			c.Idempotency = store
		} else {
			c.Idempotency = idempotency.NewMemoryStore()
		}
	}

	c.Events = o.events
	if c.Events == nil {
		pub, err := c.openPublisher(ctx, cfg.Events)
		if err != nil {
			return nil, err
		}
		c.Events = pub
	}

	if url := strings.TrimSpace(cfg.Auth.JWKSURL); url != "" {
		keys := auth.NewJWKSCache(url, auth.WithJWKSLogger(o.logger.Named("jwks")))
		c.Auth, err = auth.NewAuthenticator(keys, auth.Config{
			Audience:   cfg.Auth.Audience,
			Issuers:    cfg.Auth.Issuers,
			ActorClaim: cfg.Auth.ActorClaim,
		}, auth.WithClock(o.clock))
		if err != nil {
			return nil, fmt.Errorf("build operator auth: %w", err)
		}
	}

	svc, err := buildServices(c.Repositories, cfg, cur, c.Events, o)
	if err != nil {
		return nil, err
	}
	c.Services = svc
	return c, nil
}

func (c *Container) openRegistry(ctx context.Context, cfg config.Config, redisClient *redis.Client, migrate bool) (repositories.Registry, error) {
	var extra []repositories.DependencyCheck
	if redisClient != nil {
		extra = append(extra, repositories.DependencyCheck{
			Name:  "redis",
			Check: idempotency.PingCheck(redisClient),
		})
	}

	switch cfg.Database.Driver {
	case config.DatabaseDriverMemory:
		c.logger.Warn("using in-memory repositories; data is lost on restart")
		return memory.New(), nil
	case config.DatabaseDriverPostgres, "":
		db, err := database.Connect(ctx, database.Options{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if migrate {
			if err := c.migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		// The registry owns the pool from here on and closes it in Close.
		reg, err := postgres.New(db, postgres.WithHealthChecks(extra...))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("build postgres registry: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (c *Container) migrate(ctx context.Context, db *sql.DB) error {
	goose.SetLogger(observability.NewPrintfAdapter(c.logger.Named("migrations")))
	version, err := database.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	c.logger.Info("database schema ready", zap.Int64("version", version))
	return nil
}

func (c *Container) openPublisher(ctx context.Context, cfg config.EventsConfig) (services.OrderEventPublisher, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return jobs.NoopOrderPublisher{}, nil
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	topic := client.Topic(cfg.Topic)
	topic.EnableMessageOrdering = true
	c.closers = append(c.closers, func(context.Context) error {
		topic.Stop()
		return client.Close()
	})

	pub, err := jobs.NewPubSubOrderPublisher(topic)
	if err != nil {
		return nil, fmt.Errorf("build order event publisher: %w", err)
	}
	return pub, nil
}

func buildServices(reg repositories.Registry, cfg config.Config, cur domain.Currency, events services.OrderEventPublisher, o options) (Services, error) {
	var svc Services
	eventLogger := observability.EventLogger(o.logger.Named("services"))
	ids := services.NewIdentifierGenerator(o.clock, nil)

	categorySvc, err := services.NewCategoryService(services.CategoryServiceDeps{
		Categories: reg.Categories(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		IDs:        ids,
		Clock:      o.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build category service: %w", err)
	}
	svc.Categories = categorySvc

	brandSvc, err := services.NewBrandService(services.BrandServiceDeps{
		Brands:     reg.Brands(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		IDs:        ids,
		Clock:      o.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build brand service: %w", err)
	}
	svc.Brands = brandSvc

	productSvc, err := services.NewProductService(services.ProductServiceDeps{
		Products:          reg.Products(),
		Variants:          reg.Variants(),
		Categories:        reg.Categories(),
		Brands:            reg.Brands(),
		UnitOfWork:        reg,
		Currency:          cur,
		IDs:               ids,
		Clock:             o.clock,
		Logger:            eventLogger,
		StrictSubcategory: cfg.Catalog.StrictSubcategory,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product service: %w", err)
	}
	svc.Products = productSvc

	policy, err := services.ParseVariantPolicy(cfg.Orders.VariantPolicy)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:             reg.Orders(),
		Products:           reg.Products(),
		Variants:           reg.Variants(),
		Clients:            reg.Clients(),
		Addresses:          reg.Addresses(),
		UnitOfWork:         reg,
		Currency:           cur,
		IDs:                ids,
		Clock:              o.clock,
		Events:             events,
		Logger:             eventLogger,
		VariantPolicy:      policy,
		EnforceTransitions: cfg.Orders.EnforceTransitions,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := o.build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            o.clock,
			Build:            build,
			Critical:         []string{"postgres", "memory"},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// Handler assembles the HTTP router with the observability middleware chain
// and every route group mounted.
func (c *Container) Handler() http.Handler {
	cfg := c.Config
	projectID := strings.TrimSpace(cfg.Events.ProjectID)
	httpLogger := c.logger.Named("http")

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware(projectID),
		observability.InjectLoggerMiddleware(httpLogger),
		observability.ActorMiddleware(observability.DefaultActorHeader),
		observability.RequestLoggerMiddleware(projectID),
		observability.RecoveryMiddleware(httpLogger),
	}

	createGate := idempotency.Middleware(
		c.Idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithRequired(cfg.Idempotency.Required),
		idempotency.WithLogger(c.logger.Named("idempotency")),
	)

	build := c.build
	if build.Environment == "" {
		build.Environment = cfg.Environment
	}
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(build),
		handlers.WithHealthSystemService(c.Services.System),
	)

	pageSize := cfg.Catalog.DefaultPageSize
	categoryHandlers := handlers.NewCategoryHandlers(c.Services.Categories)
	brandHandlers := handlers.NewBrandHandlers(c.Services.Brands, pageSize)
	productHandlers := handlers.NewProductHandlers(c.Services.Products, c.Currency, pageSize)
	orderHandlers := handlers.NewOrderHandlers(c.Services.Orders,
		handlers.WithOrderCurrency(c.Currency),
		handlers.WithOrderPageSize(pageSize),
		handlers.WithCreateMiddleware(createGate),
	)

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithBrandRoutes(brandHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	}
	if c.Auth != nil {
		routerOpts = append(routerOpts, handlers.WithAPIMiddlewares(c.Auth.Require))
	}
	return handlers.NewRouter(routerOpts...)
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
