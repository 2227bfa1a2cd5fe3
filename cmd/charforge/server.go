package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/charforge/agent/conversation"
	"github.com/BaSui01/charforge/agent/generation"
	"github.com/BaSui01/charforge/api/handlers"
	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/character/prompt"
	"github.com/BaSui01/charforge/config"
	"github.com/BaSui01/charforge/internal/cache"
	"github.com/BaSui01/charforge/internal/database"
	"github.com/BaSui01/charforge/internal/metrics"
	"github.com/BaSui01/charforge/internal/server"
	"github.com/BaSui01/charforge/internal/store"
	"github.com/BaSui01/charforge/internal/telemetry"
	"github.com/BaSui01/charforge/internal/tlsutil"
	"github.com/BaSui01/charforge/llm/gemini"
	charimage "github.com/BaSui01/charforge/llm/image"
)

// tokenEncoding 对话历史 token 统计使用的编码
const tokenEncoding = "cl100k_base"

// skipAuthPaths 无需认证的探针与元信息路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server 持有全部运行期组件
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	otel      *telemetry.Providers
	collector *metrics.Collector
	client    *gemini.Client
	catalog   *character.Catalog
	watcher   *config.FileWatcher
	cache     *cache.Manager
	db        *database.PoolManager
	records   *store.RecordRepository
	registry  *handlers.SessionRegistry

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 按配置初始化全部组件。
// 可选依赖（Redis、数据库、基础数据）不可用时降级运行，只记录警告。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, Version, logger, telemetry.ServiceAttributes(cfg)...)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.otel = providers

	s.collector = metrics.NewCollector("charforge", logger)

	client, err := newGeminiClient(cfg.Gemini, logger, gemini.WithRecorder(s.collector))
	if err != nil {
		return nil, err
	}
	s.client = client
	if !client.HasAPIKey() {
		logger.Warn("Gemini API key not configured, generation requests will fail until it is provided")
	}

	s.catalog = loadCatalog(cfg.Generation, logger)
	if cfg.Generation.WatchBaseData && cfg.Generation.BaseDataPath != "" {
		if err := s.watchBaseData(ctx); err != nil {
			logger.Warn("Base data watcher disabled", zap.Error(err))
		}
	}

	var chatOpts []conversation.SessionOption
	chatOpts = append(chatOpts,
		conversation.WithTokenCounter(conversation.NewTokenCounter(tokenEncoding, logger)),
		conversation.WithTokenRecorder(s.collector),
	)
	if cfg.Redis.Enabled {
		mgr, err := newCacheManager(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis not available, chat history kept in memory", zap.Error(err))
		} else {
			s.cache = mgr
			chatOpts = append(chatOpts, conversation.WithStore(conversation.NewRedisStore(mgr)))
		}
	}

	registryOpts := []handlers.RegistryOption{
		handlers.WithOrchestratorOptions(
			generation.WithImageStore(charimage.NewMaterializer(cfg.Storage.ImageDir, logger)),
			generation.WithRecorder(s.collector),
		),
		handlers.WithChatOptions(chatOpts...),
		handlers.WithSessionGauge(s.collector),
		handlers.WithMaxSessions(cfg.Server.MaxSessions),
	}

	if cfg.Database.Enabled {
		if err := s.openRecords(ctx); err != nil {
			logger.Warn("Database not available, generation records disabled", zap.Error(err))
		} else {
			registryOpts = append(registryOpts, handlers.WithTracker(s.records.Track))
		}
	}

	s.registry = handlers.NewSessionRegistry(client, s.catalog, sessionTemplate(cfg), logger, registryOpts...)
	return s, nil
}

// newGeminiClient 解析 API Key 并创建客户端；Key 缺失不视为错误
func newGeminiClient(cfg config.GeminiConfig, logger *zap.Logger, opts ...gemini.Option) (*gemini.Client, error) {
	key, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini credentials: %w", err)
	}
	return gemini.NewClient(gemini.Config{
		APIKey:            key,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	}, logger, opts...), nil
}

// loadCatalog 加载基础数据；失败时返回未加载的目录，生成请求报告 CONFIGURATION_MISSING
func loadCatalog(cfg config.GenerationConfig, logger *zap.Logger) *character.Catalog {
	catalog := character.NewCatalog(cfg.BaseDataPath, logger)
	if err := catalog.Reload(); err != nil {
		logger.Warn("Base data not loaded", zap.String("path", cfg.BaseDataPath), zap.Error(err))
	}
	return catalog
}

// translations 内置翻译表叠加配置中的条目
func translations(extra map[string]string) prompt.TranslationTable {
	table := prompt.DefaultTranslations()
	for k, v := range extra {
		table[k] = v
	}
	return table
}

// sessionTemplate 新会话的默认配置
func sessionTemplate(cfg *config.Config) handlers.SessionTemplate {
	return handlers.SessionTemplate{
		Generation: generation.Config{
			TextModel:    cfg.Gemini.TextModel,
			ImageModel:   cfg.Gemini.ImageModel,
			Range:        character.Range{Min: cfg.Generation.MinValue, Max: cfg.Generation.MaxValue},
			ImageEnabled: cfg.Generation.ImageEnabled,
			Translations: translations(cfg.Generation.Translations),
		},
		Chat: conversation.SessionConfig{
			Model:             cfg.Chat.Model,
			SystemInstruction: cfg.Chat.SystemInstruction,
		},
	}
}

func newCacheManager(cfg config.RedisConfig, logger *zap.Logger) (*cache.Manager, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = cfg.Addr
	cacheCfg.Password = cfg.Password
	cacheCfg.DB = cfg.DB
	cacheCfg.DefaultTTL = cfg.HistoryTTL
	if cfg.PoolSize > 0 {
		cacheCfg.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		cacheCfg.MinIdleConns = cfg.MinIdleConns
	}
	return cache.NewManager(cacheCfg, logger)
}

// openRecords 打开数据库并准备生成记录仓库
func (s *Server) openRecords(ctx context.Context) error {
	pool, err := database.Open(s.cfg.Database, s.logger, database.WithStatsRecorder(s.collector))
	if err != nil {
		return err
	}

	repo := store.NewRecordRepository(pool.DB(), s.logger, store.WithQueryRecorder(s.collector))
	if s.cfg.Database.AutoMigrate {
		if err := repo.AutoMigrate(ctx); err != nil {
			_ = pool.Close()
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	s.db = pool
	s.records = repo
	s.logger.Info("Database connected", zap.String("driver", s.cfg.Database.Driver))
	return nil
}

// watchBaseData 基础数据文件变更时重载；解析失败保留旧数据
func (s *Server) watchBaseData(ctx context.Context) error {
	opts := []config.WatcherOption{config.WithWatcherLogger(s.logger)}
	if s.cfg.Generation.WatchInterval > 0 {
		opts = append(opts, config.WithPollInterval(s.cfg.Generation.WatchInterval))
	}

	w, err := config.NewFileWatcher([]string{s.cfg.Generation.BaseDataPath}, opts...)
	if err != nil {
		return err
	}
	w.OnChange(func(ev config.FileEvent) {
		if err := s.catalog.Reload(); err != nil {
			s.logger.Error("Base data reload failed", zap.String("path", ev.Path), zap.Error(err))
			return
		}
		s.logger.Info("Base data reloaded", zap.String("path", ev.Path), zap.String("op", ev.Op.String()))
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// routes 注册全部 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	handlers.NewSessionHandler(s.registry, s.logger).Register(mux)
	handlers.NewChatHandler(s.registry, s.logger).Register(mux)
	handlers.NewEventsHandler(s.registry, s.cfg.Server.CORSAllowedOrigins, s.logger).Register(mux)
	handlers.NewCatalogHandler(s.catalog, s.logger).Register(mux)
	if s.records != nil {
		handlers.NewRecordsHandler(s.records, s.logger).Register(mux)
	}

	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewBaseDataHealthCheck(s.catalog))
	health.RegisterCheck(handlers.NewAPIKeyHealthCheck(s.client.HasAPIKey))
	if s.db != nil {
		health.RegisterCheck(handlers.NewDatabaseHealthCheck("database", s.db.Ping))
	}
	if s.cache != nil {
		health.RegisterCheck(handlers.NewRedisHealthCheck("redis", s.cache.Ping))
	}
	health.Register(mux, Version, BuildTime, GitCommit)

	return mux
}

// handler 返回带中间件链的根 Handler
func (s *Server) handler(ctx context.Context) http.Handler {
	sc := s.cfg.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(sc.CORSAllowedOrigins),
	}
	if sc.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.logger))
	}
	if len(sc.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(sc.APIKeys, skipAuthPaths, s.logger))
	}
	if sc.JWTSecret != "" {
		chain = append(chain, JWTAuth(sc.JWTSecret, sc.JWTIssuer, skipAuthPaths, s.logger))
	}
	return Chain(s.routes(), chain...)
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 API 与 Metrics 服务器，阻塞到 ctx 结束或任一服务器失败
func (s *Server) Run(ctx context.Context) error {
	sc := s.cfg.Server

	apiCfg := server.DefaultConfig()
	apiCfg.Addr = fmt.Sprintf(":%d", sc.HTTPPort)
	apiCfg.ReadTimeout = sc.ReadTimeout
	apiCfg.WriteTimeout = sc.WriteTimeout
	apiCfg.IdleTimeout = 2 * sc.ReadTimeout
	apiCfg.ShutdownTimeout = sc.ShutdownTimeout
	if sc.TLSCertFile != "" && sc.TLSKeyFile != "" {
		tlsCfg, err := tlsutil.ServerTLSConfig(sc.TLSCertFile, sc.TLSKeyFile)
		if err != nil {
			return err
		}
		apiCfg.TLS = tlsCfg
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.httpManager = server.NewManager("api", s.handler(ctx), apiCfg, s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Run(gctx) })

	if sc.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsCfg := server.DefaultConfig()
		metricsCfg.Addr = fmt.Sprintf(":%d", sc.MetricsPort)
		metricsCfg.ShutdownTimeout = sc.ShutdownTimeout

		s.metricsManager = server.NewManager("metrics", mux, metricsCfg, s.logger)
		g.Go(func() error { return s.metricsManager.Run(gctx) })
	}

	s.logger.Info("CharForge ready",
		zap.Int("http_port", sc.HTTPPort),
		zap.Int("metrics_port", sc.MetricsPort),
		zap.Bool("tls", apiCfg.TLS != nil),
	)
	return g.Wait()
}

// Close 释放服务器之外的资源，重复调用无副作用
func (s *Server) Close() {
	s.logger.Info("Starting graceful shutdown...")

	if s.watcher != nil {
		_ = s.watcher.Stop()
	}

	if s.registry != nil {
		for _, entry := range s.registry.List() {
			_ = s.registry.Delete(entry.ID)
		}
	}

	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
		s.cache = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	if s.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.otel.Shutdown(ctx))
		cancel()
		s.otel = nil
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
