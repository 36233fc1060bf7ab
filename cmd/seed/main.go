package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stayreserve/internal/config"
	"stayreserve/internal/database"
	"stayreserve/internal/domain"
	jwtsvc "stayreserve/internal/pkg/jwt"
	"stayreserve/internal/pkg/logger"
	"stayreserve/internal/repository"
)

var demoApartments = []domain.Apartment{
	{ID: 1, Title: "Old Town loft", NightlyPrice: 95, Available: true},
	{ID: 2, Title: "Riverside studio", NightlyPrice: 70, Available: true},
	{ID: 3, Title: "Garden two-bedroom", NightlyPrice: 140, Available: true},
	{ID: 4, Title: "Penthouse (renovation)", NightlyPrice: 260, Available: false},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProdLike() {
		log.Fatal("seed is for development databases only")
	}

	logg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL, logg)
	if err != nil {
		logg.Fatal("DB connection failed", zap.Error(err))
	}

	ctx := context.Background()
	apartments := repository.NewApartmentRepository(db)
	if err := apartments.Migrate(ctx); err != nil {
		logg.Fatal("migrate apartments", zap.Error(err))
	}
	if err := repository.NewBookingRepository(db).Migrate(ctx); err != nil {
		logg.Fatal("migrate bookings", zap.Error(err))
	}
	if err := apartments.Upsert(ctx, demoApartments); err != nil {
		logg.Fatal("seed apartments", zap.Error(err))
	}
	logg.Info("apartments seeded", zap.Int("count", len(demoApartments)))

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	for _, u := range []struct {
		id   int64
		role domain.UserRole
	}{
		{1, domain.RoleAdmin},
		{7, domain.RoleGuest},
		{8, domain.RoleGuest},
	} {
		token, err := j.GenerateToken(u.id, u.role)
		if err != nil {
			logg.Fatal("generate token", zap.Error(err))
		}
		fmt.Printf("%-5s user_id=%d token=%s\n", u.role, u.id, token)
	}
}
