package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"coursesync/config"
	"coursesync/internal/api"
	"coursesync/internal/crm"
	"coursesync/internal/db"
	"coursesync/internal/health"
	"coursesync/internal/locks"
	"coursesync/internal/logs"
	"coursesync/internal/middleware"
	"coursesync/internal/repo"
	"coursesync/internal/syncer"
	"coursesync/internal/tenancy"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	rdb        *redis.Client
	Router     *mux.Router
	httpServer *http.Server

	Orchestrator *syncer.Orchestrator
	Provisioner  *tenancy.Provisioner
	Audit        *repo.AuditStore

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB — без неё движку негде взять записи и покупки */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	a.db = d
	if err := db.Migrate(a.db); err != nil {
		return fmt.Errorf("db migrate failed: %w", err)
	}

	/* 3) Движок */
	if err := a.wire(); err != nil {
		return err
	}

	/* 4) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	checks := []health.Check{health.DB(a.db)}
	if a.rdb != nil {
		checks = append(checks, health.Redis(a.rdb))
	}
	health.RegisterRoutes(a.Router, checks...) // /healthz, /readyz

	api.RegisterRoutes(a.Router, a.cfg.Server.APIToken, api.NewHandler(a.Orchestrator, a.Audit, a.Provisioner))

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) wire() error {
	users := repo.NewUserStore(a.db)
	tenants := repo.NewTenantStore(a.db)
	courses := repo.NewCourseStore(a.db)
	a.Audit = repo.NewAuditStore(a.db)

	crmOpts := crm.Options{BaseURL: a.cfg.CRM.BaseURL, APIVersion: a.cfg.CRM.APIVersion}
	registry := tenancy.NewClientRegistry(tenancy.CRMFactory(crmOpts))
	resolver := tenancy.NewResolver(users, tenants, tenancy.Defaults{
		LocationID: a.cfg.CRM.DefaultLocationID,
		Credential: a.cfg.CRM.DefaultCredential,
	})

	var locker locks.Locker = locks.NewMemory(a.cfg.Sync.LockWait)
	if addr := a.cfg.Redis.Address; addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		locker = locks.NewRedis(a.rdb, a.cfg.Sync.LockTTL, a.cfg.Sync.LockWait)
		logs.Logger.Infof("contact locks: redis %s", addr)
	} else {
		logs.Logger.Info("contact locks: in-process")
	}

	var agency tenancy.Agency
	if a.cfg.CRM.AgencyCredential != "" {
		ag, err := crm.NewAgency(crmOpts, a.cfg.CRM.AgencyCredential, a.cfg.CRM.CompanyID)
		if err != nil {
			return fmt.Errorf("crm agency client: %w", err)
		}
		agency = ag
	}
	a.Provisioner = tenancy.NewProvisioner(agency, tenants, users, registry)

	a.Orchestrator = syncer.NewOrchestrator(syncer.Deps{
		Users:    users,
		Courses:  courses,
		Audit:    a.Audit,
		Resolver: resolver,
		Clients:  registry,
		Locker:   locker,
	}, syncer.Config{
		DefaultAutomationID: a.cfg.CRM.DefaultAutomationID,
		MembershipThreshold: a.cfg.Sync.MembershipThreshold,
		ContactCacheTTL:     a.cfg.Sync.ContactCacheTTL,
	})
	return nil
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}
	defer a.Close()

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	// WriteTimeout длиннее обычного: синхронизация — цепочка вызовов CRM внутри запроса
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	return nil
}

// Close освобождает соединения. Для CLI-команд, которые не вызывают Run.
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
