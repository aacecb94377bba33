package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/license"
	"github.com/licensify/licensify/internal/handler/dto"
	"github.com/licensify/licensify/internal/service"
	"github.com/licensify/licensify/internal/storage/postgres"
	"go.uber.org/zap"
)

func main() {
	licType := flag.String("type", "unlimited", "License type: unlimited, trial or limited")
	customerName := flag.String("customer", "", "Customer name")
	customerEmail := flag.String("email", "", "Customer email")
	maxDevices := flag.Int("max-devices", 0, "Device cap (0 means unlimited)")
	durationDays := flag.Int("duration-days", 0, "Validity period in days (required for limited)")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	licenseRepo := postgres.NewLicenseRepository(pool, logger)
	deviceRepo := postgres.NewDeviceRepository(pool, logger)
	productRepo := postgres.NewProductRepository(pool, logger)
	svc := service.NewLicenseService(licenseRepo, deviceRepo, productRepo, 0, logger)

	req := &dto.CreateLicenseRequest{
		Type: license.LicenseType(*licType),
	}
	if *customerName != "" {
		req.CustomerName = customerName
	}
	if *customerEmail != "" {
		req.CustomerEmail = customerEmail
	}
	if *maxDevices > 0 {
		req.MaxDevices = maxDevices
	}
	if *durationDays > 0 {
		req.DurationDays = durationDays
	}

	lic, err := svc.CreateLicense(context.Background(), req)
	if err != nil {
		log.Fatalf("Failed to create license: %v", err)
	}

	fmt.Printf("License created:\n")
	fmt.Printf("  ID:   %s\n", lic.ID)
	fmt.Printf("  Key:  %s\n", lic.LicenseKey)
	fmt.Printf("  Type: %s\n", lic.Type)
	if lic.ExpiresAt.Valid {
		fmt.Printf("  Expires: %s\n", lic.ExpiresAt.Time.Format("2006-01-02"))
	}
}
