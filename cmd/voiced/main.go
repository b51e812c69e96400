package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"harmony/internal/core/domain"
	"harmony/internal/core/ports"
	"harmony/internal/core/services"
	"harmony/internal/core/state"
	httphandlers "harmony/internal/handlers/http"
	"harmony/internal/infrastructure/backup"
	"harmony/internal/infrastructure/devices"
	"harmony/internal/infrastructure/events"
	"harmony/internal/infrastructure/middleware"
	"harmony/internal/infrastructure/monitoring"
	"harmony/internal/infrastructure/presence"
	presenceredis "harmony/internal/infrastructure/presence/redis"
	"harmony/internal/infrastructure/session"
	"harmony/internal/infrastructure/storage"
	"harmony/internal/infrastructure/token"
	"harmony/pkg/config"
	"harmony/pkg/logger"
	"harmony/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}
	if path := os.Getenv("HARMONY_CONFIG"); path != "" {
		configPaths = []string{path}
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "harmony-voiced",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: os.Getenv("HARMONY_ENV"),
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatal("tracing init failed", zap.Error(err))
	}

	// Local storage: one SQLite file shared by preferences and settings.
	kv, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal("storage open failed", zap.String("path", cfg.Storage.Path), zap.Error(err))
	}
	defer kv.Close()

	prefStore, err := storage.NewPreferenceStore(kv, cfg.Storage.Path, log)
	if err != nil {
		log.Fatal("preference store init failed", zap.Error(err))
	}
	defer prefStore.Close()

	settingsStore := storage.NewSettingsStore(kv)

	var tokens ports.TokenService
	if cfg.Token.URL != "" {
		tokens = token.NewHTTPClient(cfg.Token.URL, cfg.Token.RequestTimeout)
	} else {
		tokens = token.NewLocalIssuer(cfg.Token.JWTSecret, cfg.Token.AccessTokenTTL)
	}

	var redisClient *redis.Client
	var presenceSvc ports.PresenceService
	switch cfg.Presence.Backend {
	case "redis":
		redisClient, err = presenceredis.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, log)
		if err != nil {
			log.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisClient.Close()
		presenceSvc = presenceredis.NewTracker(redisClient, cfg.Presence.TTL)
	default:
		presenceSvc = presence.NewHTTPClient(cfg.Presence.URL, log)
	}

	var iceServers []webrtc.ICEServer
	for _, s := range cfg.Media.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}
	sessionFactory := session.NewFactory(session.Config{ICEServers: iceServers}, log)

	collector := monitoring.NewCollector()
	store := state.NewStore(log)
	rooms := services.NewRoomRef()
	voiceService := services.NewVoiceService(
		store, rooms, sessionFactory,
		tokens, presenceSvc, prefStore, settingsStore,
		collector, log,
	)

	enumerator := devices.NewEnumerator(log)
	deviceService := services.NewDeviceService(enumerator, log)
	defer deviceService.Close()

	// Lifecycle events for companion processes, when redis is around.
	if redisClient != nil {
		bus := events.NewBus(redisClient, uuid.NewString(), log)
		store.Subscribe(bus.StateSubscriber(store.Snapshot()))
	}

	backupCtx, backupCancel := context.WithCancel(context.Background())
	defer backupCancel()
	if cfg.Backup.Enabled {
		scheduler := backup.NewScheduler(cfg.Storage.Path, backup.Config{
			Dir:       cfg.Backup.Dir,
			Interval:  cfg.Backup.Interval,
			Retention: cfg.Backup.Retention,
		}, log)
		go scheduler.Start(backupCtx)
		defer scheduler.Stop()
	}

	localUser := domain.UserInfo{
		ID:          domain.UserID(cfg.Identity.UserID),
		DisplayName: cfg.Identity.DisplayName,
	}
	conn := domain.ConnectionInfo{ServerURL: cfg.Media.ServerURL}

	voiceHandler := httphandlers.NewVoiceHandler(voiceService, deviceService, store, localUser, conn)
	settingsHandler := httphandlers.NewSettingsHandler(settingsStore)

	health := monitoring.NewHealthChecker()
	health.AddCheck("storage", func(ctx context.Context) error {
		var probe struct{}
		_, err := kv.Get("health_probe", &probe)
		return err
	}, 2*time.Second)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, 2*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger.NewContextLogger(log)))
	router.Use(middleware.ErrorHandler(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing())
	}
	if cfg.RateLimiting.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst))
	}

	voiceHandler.SetupRoutes(router)
	settingsHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		status := health.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting voice daemon", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal("server failed", zap.Error(err))
	case sig := <-sigChan:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Leave any active voice session before the HTTP surface goes away.
	if err := voiceService.Leave(shutdownCtx); err != nil {
		log.Warn("leave on shutdown failed", zap.Error(err))
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("server force close error", zap.Error(closeErr))
		}
	}

	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown error", zap.Error(err))
		}
	}

	log.Info("voice daemon stopped")
}
