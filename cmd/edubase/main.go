package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/campusworks/edubase/client"
	"github.com/campusworks/edubase/internal/config"
	"github.com/campusworks/edubase/internal/infra/database"
	"github.com/campusworks/edubase/internal/infra/repository"
	"github.com/campusworks/edubase/internal/present/rest"
	"github.com/campusworks/edubase/internal/present/rest/middleware"
	"github.com/campusworks/edubase/internal/service"
	"github.com/campusworks/edubase/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := setupTrace(conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	institutionRepo := repository.NewInstitutionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	revisionRepo := repository.NewRevisionRepository(db)
	reconciler := repository.NewReconciler(db)

	signal := service.NewSignalService(rdb)
	audit := service.NewAuditService(signal)
	auth := service.NewAuthService(conf.Credentials())
	perms := service.NewPermissionService(conf.Credentials())
	views := service.NewViewCache(mc, conf.ViewCacheTTL())

	settings := conf.Settings()
	stores := usecase.Stores{Institutions: institutionRepo, Courses: courseRepo}

	institutionUC := usecase.NewInstitutionUsecase(institutionRepo, revisionRepo, perms, audit)
	courseUC := usecase.NewCourseUsecase(courseRepo, revisionRepo, perms, audit)
	enrollUC := usecase.NewEnrollUsecase(courseRepo, perms, audit, settings)
	deleteUC := usecase.NewDeleteUsecase(stores, perms, audit, settings)
	undoUC := usecase.NewUndoUsecase(stores, revisionRepo, perms, audit)
	restoreUC := usecase.NewRestoreUsecase(stores, revisionRepo, perms, audit)
	undeleteUC := usecase.NewUndeleteUsecase(stores, revisionRepo, perms, audit)
	maintenanceUC := usecase.NewMaintenanceUsecase(reconciler, perms, audit)

	var idp *client.Client
	if conf.Site.IdentityProviderURL != "" {
		idp = client.New(conf.Site.IdentityProviderURL)
	}

	handler := rest.NewHandler(
		institutionUC,
		courseUC,
		enrollUC,
		deleteUC,
		undoUC,
		restoreUC,
		undeleteUC,
		maintenanceUC,
		signal,
		views,
		idp,
	)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("edubase"))
	}

	authMiddleware := middleware.NewAuthMiddleware(auth)
	e.Use(authMiddleware.IdentifyIdentity)

	handler.RegisterRoutes(e)

	addr := conf.Server.Addr
	if addr == "" {
		addr = ":8000"
	}
	e.Logger.Fatal(e.Start(addr))
}

func setupTrace(endpoint string) (func(), error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down tracer provider", slog.String("error", err.Error()))
		}
	}, nil
}
