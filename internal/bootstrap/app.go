package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/analyses"
	wechatauth "wish-backend/internal/auth"
	"wish-backend/internal/llm"
	"wish-backend/internal/orders"
	"wish-backend/internal/safety"
	"wish-backend/internal/shared/config"
	"wish-backend/internal/shared/server"
	"wish-backend/internal/shared/storage/db"
	"wish-backend/internal/users"
	"wish-backend/internal/wechat"
	"wish-backend/internal/wishes"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	AnalysesRepo analyses.Repo
	AttemptLog   analyses.AttemptLog
	UsersRepo    users.Repo
	WishesRepo   wishes.Repo
	OrdersRepo   orders.Repo

	Platform *wechat.Client
	Safety   safety.Checker
	LLM      llm.Client

	AnalysesService *analyses.Service
	UsersService    *users.Service
	WishesService   *wishes.Service
	OrdersService   *orders.Service
	Janitor         *analyses.Janitor

	AnalysisHandler *analyses.Handler
	UserHandler     *users.Handler
	WishHandler     *wishes.Handler
	OrderHandler    *orders.Handler
	WeChatAuth      *wechatauth.WeChatService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		WishHandler:     app.WishHandler,
		OrderHandler:    app.OrderHandler,
		UserHandler:     app.UserHandler,
		WeChatAuth:      app.WeChatAuth,
	})

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() {
	if a.Janitor != nil {
		a.Janitor.Stop()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
		app.AttemptLog = &analyses.PGAttemptLog{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.WishesRepo = &wishes.PGRepo{DB: app.DB}
		app.OrdersRepo = &orders.PGRepo{DB: app.DB}
	} else {
		app.AnalysesRepo = analyses.NewMemoryRepo()
		app.AttemptLog = analyses.NewMemoryAttemptLog()
		app.UsersRepo = users.NewMemoryRepo()
		app.WishesRepo = wishes.NewMemoryRepo()
		app.OrdersRepo = orders.NewMemoryRepo()
	}

	registry, err := llm.NewRegistry(app.Config.LLMProviders, app.Config.LLMMode)
	if err != nil {
		if !errors.Is(err, llm.ErrNoProviders) || !isDevLike(app.Config.Env) {
			return err
		}
		log.Printf("bootstrap: no LLM provider credentials; analysis requests will fail")
		registry = nil
	}
	app.LLM = llm.NewOrchestrator(registry, nil, app.Config.TotalDeadline)

	app.Platform = wechat.NewClient(app.Config.WeChatAppID, app.Config.WeChatAppSecret)
	if strings.TrimSpace(app.Config.WeChatAppID) != "" {
		app.Safety = &safety.WeChatChecker{Client: app.Platform}
	} else {
		if !isDevLike(app.Config.Env) {
			return fmt.Errorf("WECHAT_APP_ID is required")
		}
		log.Printf("bootstrap: WECHAT_APP_ID empty; content safety checks disabled")
		app.Safety = safety.AllowAll{}
	}

	analysisSvc := analyses.NewService(app.AnalysesRepo, app.AttemptLog, app.LLM, app.Safety)
	analysisSvc.TokenTTL = app.Config.TokenTTL
	analysisSvc.AnalyzeCap = app.Config.AnalyzeCap
	analysisSvc.UnlockCap = app.Config.UnlockCap

	userSvc := users.NewService(app.UsersRepo)
	wishSvc := wishes.NewService(app.WishesRepo, app.Safety)
	orderSvc := orders.NewService(app.OrdersRepo)

	app.AnalysesService = analysisSvc
	app.UsersService = userSvc
	app.WishesService = wishSvc
	app.OrdersService = orderSvc

	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.UserHandler = users.NewHandler(userSvc)
	app.WishHandler = wishes.NewHandler(wishSvc)
	app.OrderHandler = orders.NewHandler(orderSvc)
	app.WeChatAuth = wechatauth.NewWeChatService(app.Platform, userSvc)

	app.Janitor = analyses.NewJanitor(app.AttemptLog)

	return nil
}
