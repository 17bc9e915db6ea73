package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-co-op/gocron/v2"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/dietafit/backend/internal/auth"
	"github.com/dietafit/backend/internal/config"
	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/measurements"
	"github.com/dietafit/backend/internal/middleware"
	"github.com/dietafit/backend/internal/plans"
	"github.com/dietafit/backend/internal/progress"
	"github.com/dietafit/backend/internal/telemetry/metrics"
	"github.com/dietafit/backend/internal/users"
	"github.com/dietafit/backend/pkg"
)

const statsCacheSizeBytes = 10 * 1024 * 1024

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	redisClient *redis.Client
	scheduler   gocron.Scheduler
	notifier    *kvstore.Notifier

	authService *auth.Service
	directory   *users.Directory
	catalog     *plans.Catalog
	tracker     *plans.Tracker
	ledger      *progress.Ledger
	evaluator   *progress.Evaluator
	stats       *progress.StatsService
	repo        *measurements.Repo

	statsCancel context.CancelFunc

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

type NewServerParams struct {
	Config        *config.Config
	RedisPassword string
	VersionInfo   string
}

func NewServer(ctx context.Context, params NewServerParams) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("dietafit", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	store := kvstore.NewRedisStore(rdb)
	notifier := kvstore.NewNotifier()

	authService := auth.NewService(auth.DefaultTTL, rdb)
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(8*time.Hour),
		gocron.NewTask(func() {
			authService.ScanAndClean(ctx)
		}),
	); err != nil {
		return nil, fmt.Errorf("new sessions cleanup job: %w", err)
	}
	scheduler.Start()

	directory := users.NewDirectory(store, notifier)
	catalog := plans.NewCatalog()
	tracker := plans.NewTracker(store, catalog, notifier)
	ledger := progress.NewLedger(store, tracker, notifier)
	evaluator := progress.NewEvaluator(store, ledger, tracker, notifier, metricsManager)
	statsService := progress.NewStatsService(
		ledger,
		directory,
		evaluator,
		freecache.NewCache(statsCacheSizeBytes),
	)

	statsCtx, statsCancel := context.WithCancel(ctx)
	statsService.StartCacheInvalidation(statsCtx, notifier.Subscribe())

	return &Server{
		versionInfo: params.VersionInfo,
		config:      params.Config,
		redisClient: rdb,
		scheduler:   scheduler,
		notifier:    notifier,

		authService: authService,
		directory:   directory,
		catalog:     catalog,
		tracker:     tracker,
		ledger:      ledger,
		evaluator:   evaluator,
		stats:       statsService,
		repo:        measurements.NewRepo(store, notifier),

		statsCancel: statsCancel,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	usersHandler := users.NewHandler(s.directory, s.authService, s.metricsManager)
	usersHandler.SetupAuthRoutes(r, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin, s.metricsManager)
	usersHandler.SetupAccountRoutes(r)

	plans.NewHandler(s.catalog, s.tracker, s.metricsManager).SetupRoutes(r)
	progress.NewHandler(s.ledger, s.stats, s.evaluator, s.metricsManager).SetupRoutes(r)
	measurements.NewHandler(s.repo, s.ledger).SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)
	s.statsCancel()

	if err := s.scheduler.Shutdown(); err != nil {
		log.Errorf("failed to shut down scheduler: %s", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}
