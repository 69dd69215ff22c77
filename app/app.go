package app

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/config"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/notify"
	"Gin_postgres_redis_library/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Ctx = gin.Context
type H = gin.H

// App wires the process-wide dependencies.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config Config
	Logger *slog.Logger

	Repo     *db.Repo
	Sink     *notify.Sink
	Hub      *notify.Hub
	Workflow *circulation.Workflow

	appSess *session.AppSessionStore
}

type Config struct {
	Env             string
	AppName         string
	DatabaseURL     string
	RedisAddr       string
	RedisPwd        string
	WebOrigin       string
	RPID            string
	RPOrigins       []string
	SessionTTL      time.Duration // WebAuthn ceremonies
	AppSessionTTL   time.Duration
	DashboardTTL    time.Duration
	LibrarianEmails []string
	Circulation     config.Circulation
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

func MustNew() *App {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := NewLogger(cfg.Env)
	slog.SetDefault(logger)

	dbConn, err := db.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.AppName + " Passkeys",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		log.Fatalf("webauthn: %v", err)
	}

	repo := db.NewRepo(dbConn)
	sink := notify.NewSink(repo, notify.NewRedisOutbox(rdb), notify.NewRedisPublisher(rdb), logger.With("component", "notify"))
	workflow := circulation.NewWorkflow(db.NewReturnLedger(dbConn), sink, cfg.Circulation.Policy,
		circulation.WithLogger(logger.With("component", "circulation")))

	r := gin.Default()
	useCORS(r, append([]string{cfg.WebOrigin}, cfg.RPOrigins...))
	return &App{
		Router: r, DB: dbConn, RDB: rdb, WA: wa, Config: cfg, Logger: logger,
		Repo:     repo,
		Sink:     sink,
		Hub:      notify.NewHub(append([]string{cfg.WebOrigin}, cfg.RPOrigins...), logger.With("component", "hub")),
		Workflow: workflow,
		appSess:  session.NewAppSessionStore(rdb, cfg.AppSessionTTL),
	}
}

func (a *App) Close() {
	_ = a.RDB.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewLogger writes JSON in production and text elsewhere.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func loadConfig() (Config, error) {
	get := config.Get
	seconds := func(k, def string) time.Duration {
		d, err := time.ParseDuration(get(k, def) + "s")
		if err != nil {
			d, _ = time.ParseDuration(def + "s")
		}
		return d
	}

	origins := config.CSV("RP_ORIGINS")
	if len(origins) == 0 {
		origins = []string{get("WEB_ORIGIN", "http://localhost:5173")}
	}
	var librarians []string
	for _, e := range config.CSV("LIBRARIAN_EMAILS") {
		librarians = append(librarians, strings.ToLower(e))
	}

	circ, err := config.LoadCirculation()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Env:             get("APP_ENV", "development"),
		AppName:         get("APP_NAME", "Library"),
		DatabaseURL:     db.DSN(),
		RedisAddr:       get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:        get("REDIS_PASSWORD", ""),
		WebOrigin:       get("WEB_ORIGIN", "http://localhost:5173"),
		RPID:            get("RP_ID", "localhost"),
		RPOrigins:       origins,
		SessionTTL:      seconds("SESSION_TTL_SECONDS", "600"),
		AppSessionTTL:   seconds("APP_SESSION_TTL_SECONDS", "86400"),
		DashboardTTL:    seconds("DASHBOARD_CACHE_SECONDS", "30"),
		LibrarianEmails: librarians,
		Circulation:     circ,
	}, nil
}

// NewUserID returns a fresh user id; its 16 bytes are the WebAuthn user handle.
func NewUserID() string { return uuid.NewString() }
