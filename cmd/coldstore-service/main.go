package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nurpe/coldstore/internal/auth"
	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/config"
	"github.com/nurpe/coldstore/internal/csvexport"
	"github.com/nurpe/coldstore/internal/db"
	"github.com/nurpe/coldstore/internal/excel"
	httphandler "github.com/nurpe/coldstore/internal/http"
	"github.com/nurpe/coldstore/internal/http/middleware"
	"github.com/nurpe/coldstore/internal/ledger"
	"github.com/nurpe/coldstore/internal/logger"
	"github.com/nurpe/coldstore/internal/model"
	"github.com/nurpe/coldstore/internal/pdf"
	"github.com/nurpe/coldstore/internal/repository"
	"github.com/nurpe/coldstore/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	snapshotRepo := repository.NewSnapshotRepository(database)
	calculator := billing.NewCalculator(cfg.Billing.Currency)
	book, err := ledger.New(calculator, model.RateSettings{
		AppleRate:  cfg.Billing.DefaultAppleRate,
		PotatoRate: cfg.Billing.DefaultPotatoRate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init ledger")
	}

	storageService := service.NewStorageService(book, snapshotRepo, log)
	if err := storageService.Load(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load ledger")
	}

	reportService := service.NewReportService(storageService, pdf.NewGenerator(), map[model.ReportFormat]service.TableGenerator{
		model.ReportFormatXLSX: excel.NewGenerator(),
		model.ReportFormatCSV:  csvexport.NewWriter(),
	}, cfg.Billing.Currency)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(storageService, reportService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting coldstore service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
