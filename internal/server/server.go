package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/time/rate"

	"github.com/sngm3741/form-intake/api/internal/config"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/blob"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/messenger"
	mongodoc "github.com/sngm3741/form-intake/api/internal/infrastructure/mongo"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/notion"
	intakeapp "github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
	adminhttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/admin"
	commonhttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
	publichttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/public"
	"github.com/sngm3741/form-intake/api/internal/metrics"
)

// Clients は外部ストアへの接続。未設定のものは nil のままでよい。
type Clients struct {
	Redis        *redis.Client
	Mongo        *mongo.Client
	NotionPages  notion.PageCreator
	BlobUploader blob.Uploader
	HTTPClient   *http.Client
}

// Server は HTTP サーバーのライフサイクルを管理し、Public/Admin の各ハンドラへ依存注入するコンポジションルート。
type Server struct {
	logger         *logrus.Logger
	redis          *redis.Client
	mongo          *mongo.Client
	metrics        *metrics.Collector
	submissions    intakeapp.SubmissionCommandService
	queries        intakeapp.SubmissionQueryService
	uploads        intakeapp.UploadService
	uploadLimiter  *rate.Limiter
	maxUploadBytes int64
	jwtConfigs     []config.JWTConfig
	jwtAudience    string
	addr           string
	allowedOrigins []string
}

// New は Config と接続済みクライアントからアプリケーションサービスとハンドラを組み立てた Server を返す。
func New(cfg config.Config, clients Clients) *Server {
	logger := cfg.ServerLog
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	collector := metrics.New()
	labels := format.NewLabeler(cfg.LabelOverrides)
	formatter := format.NewFormatter(labels, cfg.Location())

	var (
		kvStore  *kv.SubmissionStore
		archive  *mongodoc.SubmissionRepository
		failures intakeapp.FailedDeliveryRepository
	)
	if clients.Redis != nil {
		kvStore = kv.NewSubmissionStore(clients.Redis, cfg.KVKeyPrefix, cfg.KVTTL)
	}
	if clients.Mongo != nil {
		database := clients.Mongo.Database(cfg.MongoDatabase)
		archive = mongodoc.NewSubmissionRepository(database, cfg.SubmissionCollection)
		failures = mongodoc.NewFailedDeliveryRepository(database, cfg.FailedDeliveryCollection)
	}

	sinks := make([]intakeapp.Sink, 0, len(cfg.Sinks))
	for _, name := range cfg.Sinks {
		switch {
		case name == config.SinkKV && kvStore != nil:
			sinks = append(sinks, kvStore)
		case name == config.SinkNotion && clients.NotionPages != nil:
			sinks = append(sinks, notion.NewDatabaseWriter(clients.NotionPages, cfg.NotionDatabaseID))
		case name == config.SinkArchive && archive != nil:
			sinks = append(sinks, archive)
		default:
			logger.Printf("シンク %s は接続が未設定のため無効です", name)
		}
	}

	var notifier intakeapp.Sink
	if n := messenger.NewNotifier(messenger.Config{
		Endpoint:           cfg.MessengerEndpoint,
		DiscordDestination: cfg.DiscordDestination,
		SlackDestination:   cfg.SlackDestination,
		AdminBaseURL:       cfg.AdminBaseURL,
		Timeout:            cfg.MessengerTimeout,
		Labels:             labels,
	}, clients.HTTPClient); n != nil {
		notifier = n
	}

	var readers []intakeapp.SubmissionReader
	var markdown []intakeapp.MarkdownReader
	if kvStore != nil {
		markdown = append(markdown, kvStore)
	}
	if archive != nil {
		readers = append(readers, archive)
		markdown = append(markdown, archive)
	}
	if kvStore != nil {
		readers = append(readers, kvStore)
	}

	var blobStore intakeapp.BlobStore
	if clients.BlobUploader != nil && cfg.BlobConfigured() {
		blobStore = blob.NewS3Store(clients.BlobUploader, blob.Config{
			Bucket:        cfg.BlobBucket,
			PublicBaseURL: cfg.BlobPublicBaseURL,
			PublicACL:     cfg.BlobPublicACL,
		})
	}

	rateLimit := rate.Limit(cfg.UploadRatePerSecond)
	if cfg.UploadRatePerSecond <= 0 {
		rateLimit = rate.Inf
	}
	burst := cfg.UploadBurst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		logger:  logger,
		redis:   clients.Redis,
		mongo:   clients.Mongo,
		metrics: collector,
		submissions: intakeapp.NewSubmissionCommandService(intakeapp.SubmissionServiceConfig{
			Formatter: formatter,
			Sinks:     sinks,
			Notifier:  notifier,
			Failures:  failures,
			Metrics:   collector,
			Logger:    logger,
		}),
		queries:        intakeapp.NewSubmissionQueryService(readers, markdown, failures),
		uploads:        intakeapp.NewUploadService(blobStore, collector, logger),
		uploadLimiter:  rate.NewLimiter(rateLimit, burst),
		maxUploadBytes: cfg.MaxUploadBytes,
		jwtConfigs:     append([]config.JWTConfig(nil), cfg.JWTConfigs...),
		jwtAudience:    cfg.JWTAudience,
		addr:           cfg.Addr,
		allowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
	}
}

// Handler はミドルウェアとルーティングを組み立てた http.Handler を返す。
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(s.metrics.Middleware)
	router.Use(withCORS(s.allowedOrigins))

	router.Get("/healthz", s.healthHandler())
	router.Handle("/metrics", s.metrics.Handler())

	publichttp.NewHandler(publichttp.Config{
		Logger:         s.logger,
		Submissions:    s.submissions,
		Uploads:        s.uploads,
		MaxUploadBytes: s.maxUploadBytes,
	}).Register(router, s.rateLimitMiddleware)

	if len(s.jwtConfigs) == 0 {
		s.logger.Printf("AUTH_ADMIN_JWT_SECRET が未設定のため管理 API は無効です")
		return router
	}
	adminHandler := adminhttp.NewHandler(adminhttp.Config{
		Logger:   s.logger,
		Queries:  s.queries,
		Commands: s.submissions,
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		adminHandler.Register(r)
	})
	return router
}

// Run はHTTPサーバーを起動し、シグナル受信まで待機する。
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP サーバー起動: http://%s", s.addr)
		errChan <- httpServer.ListenAndServe()
	}()

	return waitForShutdown(httpServer, errChan, s)
}

// withCORS は許可されたオリジン情報をもとに CORS ヘッダーを付与するミドルウェアを返す。
func withCORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	allowAll := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" || (!allowAll && !originAllowed(origin, allowed)) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
			w.Header().Set("Access-Control-Max-Age", "300")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed は指定された Origin が許可リストに含まれるか判定する。
func originAllowed(origin string, allowed map[string]struct{}) bool {
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[origin]
	return ok
}

// rateLimitMiddleware はアップロードをトークンバケットで制限する。全クライアントで 1 つのバケットを共有する。
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.uploadLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			commonhttp.WriteError(s.logger, w, http.StatusTooManyRequests, "Too many uploads, please retry shortly.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthHandler は Redis / MongoDB への疎通確認を行い、監視系からのヘルスチェック要求に応える。
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if s.redis != nil {
			checks["redis"] = "ok"
			if err := s.redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}
		if s.mongo != nil {
			checks["mongo"] = "ok"
			if err := s.mongo.Ping(ctx, readpref.Primary()); err != nil {
				checks["mongo"] = err.Error()
				healthy = false
			}
		}

		if !healthy {
			commonhttp.WriteJSON(s.logger, w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"checks": checks,
			})
			return
		}
		commonhttp.WriteJSON(s.logger, w, http.StatusOK, map[string]any{
			"status": "ok",
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// shutdown は外部クライアントをタイムアウト付きで切断する。
func (s *Server) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if s.mongo != nil {
		if err := s.mongo.Disconnect(shutdownCtx); err != nil {
			s.logger.Printf("MongoDB 切断時にエラー: %v", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Printf("Redis 切断時にエラー: %v", err)
		}
	}
}

// waitForShutdown は ListenAndServe の終了と OS シグナルを監視し、graceful shutdown を実現する。
func waitForShutdown(httpServer *http.Server, errChan <-chan error, srv *Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case sig := <-sigChan:
		srv.logger.Printf("シグナル %s を受信。サーバー停止処理を開始します。", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			srv.logger.Printf("サーバー停止時にエラー: %v", err)
		}
	}

	srv.shutdown(context.Background())
	return runErr
}
