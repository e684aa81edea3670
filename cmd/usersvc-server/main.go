package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/usersvc/usersvc/internal/config"
	"github.com/usersvc/usersvc/internal/database"
	"github.com/usersvc/usersvc/internal/health"
	"github.com/usersvc/usersvc/internal/users"
)

// Version is set via ldflags at build time.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "usersvc-server",
	Short:        "HTTP service that creates and lists users",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfgFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of usersvc-server",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usersvc-server %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default $USERSVC_CONFIG_FILE or usersvc.yaml)")
	rootCmd.AddCommand(versionCmd)
}

// AppState holds all application services
type AppState struct {
	UserService users.UserService
	Health      *health.Manager
	Logger      *zap.Logger
	Config      *config.Config

	closeStore func(ctx context.Context) error
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configFile string) error {
	if err := config.Load(configFile); err != nil {
		return err
	}

	logger := initLogger()
	defer logger.Sync()

	ctx := context.Background()

	as, err := newAppState(ctx, logger)
	if err != nil {
		logger.Error("Failed to initialize application state", zap.Error(err))
		return err
	}

	if err := as.Health.StartupHealthCheck(ctx); err != nil {
		if config.Store().RequireHealthyStartup {
			logger.Error("Startup health check failed", zap.Error(err))
			return err
		}
		// requests will fail with 503 until the store comes back
		logger.Warn("Starting with an unhealthy store", zap.Error(err))
	}

	router := setupRouter(as)

	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	done := setupSignalHandler(as, server, logger)

	logger.Info("Starting users server",
		zap.String("address", addr),
		zap.String("store", config.Store().Driver),
		zap.String("version", Version))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	<-done
	logger.Info("Server shutdown complete")
	return nil
}

// newAppState opens the configured store and wires the services around it
func newAppState(ctx context.Context, logger *zap.Logger) (*AppState, error) {
	healthManager := health.NewManager(logger)
	healthManager.AddChecker(health.NewConfigChecker(config.Get()))

	store, closeStore, err := openStore(ctx, logger, healthManager)
	if err != nil {
		return nil, err
	}

	userService := users.NewUserService(store, config.Store().Timeout())

	return &AppState{
		UserService: userService,
		Health:      healthManager,
		Logger:      logger,
		Config:      config.Get(),
		closeStore:  closeStore,
	}, nil
}

func openStore(ctx context.Context, logger *zap.Logger, hm *health.Manager) (users.UserStore, func(context.Context) error, error) {
	driver := config.Store().Driver

	switch driver {
	case config.DriverMongo:
		mongoConfig := config.Mongo()
		logger.Info("Store configuration",
			zap.String("driver", driver),
			zap.String("database", mongoConfig.Database),
			zap.String("collection", mongoConfig.Collection))

		client, err := database.OpenMongo(ctx, mongoConfig.URI, mongoConfig.Timeout())
		if err != nil {
			return nil, nil, err
		}
		hm.AddChecker(health.NewMongoChecker(client))

		coll := client.Database(mongoConfig.Database).Collection(mongoConfig.Collection)
		return users.NewMongoStore(coll), client.Disconnect, nil

	case config.DriverPostgres:
		pgConfig := config.Postgres()
		logger.Info("Store configuration",
			zap.String("driver", driver),
			zap.String("host", pgConfig.Host),
			zap.Int("port", pgConfig.Port),
			zap.String("database", pgConfig.Database),
			zap.String("user", pgConfig.User))

		db := database.OpenPostgres(pgConfig.DSN(), pgConfig.MaxOpenConnections)
		hm.AddChecker(health.NewDatabaseChecker(db))
		if err := database.CreateTables(ctx, db); err != nil {
			// the store retries on first use once the database is reachable
			logger.Warn("Failed to create tables", zap.Error(err))
		}
		return users.NewBunStore(db), closeDB(db.Close), nil

	case config.DriverSQLite:
		sqliteConfig := config.SQLite()
		logger.Info("Store configuration",
			zap.String("driver", driver),
			zap.String("path", sqliteConfig.Path))

		db, err := database.OpenSQLite(sqliteConfig.Path)
		if err != nil {
			return nil, nil, err
		}
		hm.AddChecker(health.NewDatabaseChecker(db))
		if err := database.CreateTables(ctx, db); err != nil {
			return nil, nil, err
		}
		return users.NewBunStore(db), closeDB(db.Close), nil

	case config.DriverNeo4j:
		neo4jConfig := config.Neo4j()
		logger.Info("Store configuration",
			zap.String("driver", driver),
			zap.String("uri", neo4jConfig.URI),
			zap.String("database", neo4jConfig.Database))

		graphDriver, err := database.OpenNeo4j(neo4jConfig.URI, neo4jConfig.Username, neo4jConfig.Password)
		if err != nil {
			return nil, nil, err
		}
		hm.AddChecker(health.NewNeo4jChecker(graphDriver))
		return users.NewGraphStore(graphDriver, neo4jConfig.Database), graphDriver.Close, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store, records are lost on restart")
		return users.NewMemoryStore(), func(context.Context) error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", driver)
}

func closeDB(closeFn func() error) func(context.Context) error {
	return func(context.Context) error { return closeFn() }
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var config zap.Config
	if logConfig.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	switch logConfig.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func setupRouter(as *AppState) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(cors.Default())
	router.Use(RequestLoggingMiddleware(as.Logger))
	router.Use(gin.Recovery())
	router.Use(users.MaxBodySize(config.Http().MaxRequestSize))

	router.GET("/health", healthCheck(as))

	users.NewUserHandlers(as.UserService, as.Logger).RegisterRoutes(router)

	return router
}

func healthCheck(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := as.Health.RuntimeHealthCheck(c.Request.Context())

		services := gin.H{}
		healthy := true
		for name, err := range results {
			if err != nil {
				healthy = false
				services[name] = err.Error()
				continue
			}
			services[name] = "healthy"
		}

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"services":  services,
		})
	}
}

// RequestLoggingMiddleware writes one zap entry per request
func RequestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		requestID := uuid.New().String()
		c.Header("X-Request-ID", requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startTime)),
			zap.String("remote_addr", c.ClientIP()),
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

func setupSignalHandler(as *AppState, server *http.Server, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		if err := as.closeStore(ctx); err != nil {
			logger.Error("Error closing store", zap.Error(err))
		}

		done <- struct{}{}
	}()

	return done
}
