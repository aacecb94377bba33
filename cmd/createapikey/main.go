package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/licensify/licensify/internal/domain/apikey"
	"github.com/licensify/licensify/internal/storage/postgres"
	"github.com/licensify/licensify/internal/util"
	"go.uber.org/zap"
)

func main() {
	description := flag.String("description", "Agent key", "Description stored with the key")
	productIDStr := flag.String("product", "", "Optional product UUID to scope the key to")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}

	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n\n", fullKey)
	fmt.Printf("Prefix: %s\n", prefix)

	logger, _ := zap.NewDevelopment()
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	repo := postgres.NewAPIKeyRepository(pool, logger)

	newKeyRecord := &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: *description,
		IsEnabled:   true,
	}

	if *productIDStr != "" {
		productID, err := uuid.Parse(*productIDStr)
		if err != nil {
			log.Fatalf("Invalid product UUID: %v", err)
		}
		newKeyRecord.ProductID = uuid.NullUUID{UUID: productID, Valid: true}
	}

	keyID, err := repo.Create(context.Background(), newKeyRecord)
	if err != nil {
		log.Fatalf("Failed to save API key to database: %v", err)
	}

	fmt.Printf("\nAPI Key saved to database with ID: %s\n", keyID)
}
