package cli

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	redisstore "quiz-session-service/internal/infra/redis"
)

// NewStatsCmd groups statistics maintenance operations.
func NewStatsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Lifetime statistics maintenance",
	}
	cmd.AddCommand(newStatsRebuildCmd(configPath))
	return cmd
}

// newStatsRebuildCmd refolds lifetime statistics from the session
// history table. This is a recovery operation; in the steady state the
// aggregate is maintained incrementally at session completion.
func newStatsRebuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild lifetime statistics from persisted session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			var store app.StatsStore = memory.NewStatsStore()
			if cfg.Redis.Addr != "" {
				store = redisstore.NewStatsStore(redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				}))
			}

			stats, err := app.NewAggregator(store).Rebuild(ctx, pgstore.NewHistory(pool))
			if err != nil {
				return err
			}
			fmt.Printf("rebuilt statistics: sessions=%d answered=%d correct=%d best_score=%d best_accuracy=%.1f\n",
				stats.TotalSessions, stats.TotalQuestionsAnswered, stats.TotalCorrectAnswers,
				stats.BestScore, stats.BestAccuracy)
			return nil
		},
	}
}
