package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aieditor/internal/adapter/repo"
	"aieditor/internal/domain"
	"aieditor/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		userFlag    string
		planFlag    string
		upscaleFlag int
		expandFlag  int
		keepUsage   bool
	)

	flag.StringVar(&userFlag, "user", "", "user ID or email to update")
	flag.StringVar(&planFlag, "plan", "pro", "tier to assign (free, pro)")
	flag.IntVar(&upscaleFlag, "upscale-quota", 50, "upscale quota to enforce (set <0 to keep current value)")
	flag.IntVar(&expandFlag, "expand-quota", 20, "expand quota to enforce (set <0 to keep current value)")
	flag.BoolVar(&keepUsage, "keep-usage", false, "preserve current used counters instead of resetting to 0")
	flag.Parse()

	user := strings.TrimSpace(userFlag)
	if user == "" {
		exitWithError(errors.New("-user is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userplan").Logger()
	users := repo.NewUserRepository(infra.NewSQLRunner(pool, logger))

	update := domain.PlanUpdate{
		Tier:         domain.Tier(strings.ToLower(strings.TrimSpace(planFlag))),
		UpscaleQuota: quotaArg(upscaleFlag),
		ExpandQuota:  quotaArg(expandFlag),
		ResetUsage:   !keepUsage,
	}
	ent, err := users.SetPlan(ctx, user, update)
	if errors.Is(err, domain.ErrNotFound) {
		exitWithError(fmt.Errorf("user %q not found", user))
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	fmt.Printf("User %s (%s) updated to plan %s\n", ent.UserID, ent.Email, ent.Tier)
	for _, f := range []domain.Feature{domain.FeatureUpscale, domain.FeatureExpand} {
		u := ent.Usage[f]
		fmt.Printf("%s: used=%d quota=%d\n", f, u.Used, u.Quota)
	}
}

func quotaArg(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
