package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aieditor/internal/infra"
	"aieditor/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		tokenFlag  string
		deleteFlag bool
		noteFlag   string
	)
	flag.StringVar(&tokenFlag, "token", "", "Replicate API token (fallbacks to REPLICATE_API_TOKEN)")
	flag.BoolVar(&deleteFlag, "delete", false, "remove the stored token instead of writing one")
	flag.StringVar(&noteFlag, "note", "", "optional note stored alongside the token")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", credentials.ProviderReplicate).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if deleteFlag {
		if err := store.DeleteToken(ctx, credentials.ProviderReplicate); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Replicate API token removed")
		return
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Replicate API token is required via -token or REPLICATE_API_TOKEN")
		os.Exit(1)
	}

	props := map[string]any{"stored_at": time.Now().UTC().Format(time.RFC3339)}
	if note := strings.TrimSpace(noteFlag); note != "" {
		props["note"] = note
	}
	if err := store.SetReplicateAPIToken(ctx, token, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist replicate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Replicate API token stored successfully")
}
