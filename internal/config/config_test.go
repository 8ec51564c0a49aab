package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/nilcore/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Storage, convey.ShouldEqual, config.StorageMemory)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 4096)
			convey.So(cfg.DailyLimit, convey.ShouldEqual, 3)
			convey.So(cfg.ScoreVersion, convey.ShouldEqual, "v1")
			convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"*"})
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.RefreshInterval, convey.ShouldEqual, time.Hour)
			convey.So(cfg.StaleAfter, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "nilcore")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one bad setting", t, func() {
		cases := map[string]func(*config.Config){
			"addr":          func(c *config.Config) { c.Addr = " " },
			"storage":       func(c *config.Config) { c.Storage = "redis" },
			"database_url":  func(c *config.Config) { c.Storage = config.StoragePostgres },
			"worker_count":  func(c *config.Config) { c.WorkerCount = 0 },
			"queue_size":    func(c *config.Config) { c.QueueSize = -1 },
			"dedupe_size":   func(c *config.Config) { c.DedupeSize = 0 },
			"cohort_sample": func(c *config.Config) { c.CohortSampleSize = 0 },
			"daily_limit":   func(c *config.Config) { c.DailyLimit = 0 },
			"leaderboard":   func(c *config.Config) { c.MaxLeaderboardLimit = 0 },
			"score_version": func(c *config.Config) { c.ScoreVersion = "" },
			"refresh":       func(c *config.Config) { c.RefreshInterval = -time.Second },
			"stale_after":   func(c *config.Config) { c.StaleAfter = 0 },
			"metrics_tick":  func(c *config.Config) { c.MetricsRefreshInterval = 0 },
			"buckets":       func(c *config.Config) { c.MetricsHistogramBuckets = []float64{5, 1} },
		}
		for name, mutate := range cases {
			convey.Convey("Then a bad "+name+" is rejected", func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Postgres with a URL is valid", func() {
			cfg := config.New()
			cfg.Storage = config.StoragePostgres
			cfg.DatabaseURL = "postgres://localhost/nilcore"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
