package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stayreserve/internal/config"
	"stayreserve/internal/database"
	"stayreserve/internal/pkg/logger"
	"stayreserve/internal/repository"
)

// overlap_audit scans committed bookings for overlapping stays on the same
// apartment. It exits 1 when any are found.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatal("db connect failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pairs, err := repository.NewBookingRepository(db).FindOverlaps(ctx)
	if err != nil {
		logg.Fatal("overlap scan failed", zap.Error(err))
	}

	for _, p := range pairs {
		logg.Error("overlapping bookings",
			zap.Int64("apartment_id", p.ApartmentID),
			zap.String("first_id", p.FirstID),
			zap.String("second_id", p.SecondID),
		)
	}
	logg.Info("overlap audit completed", zap.Int("overlaps", len(pairs)))
	_ = logg.Sync()

	if len(pairs) > 0 {
		cancel()
		os.Exit(1)
	}
}
