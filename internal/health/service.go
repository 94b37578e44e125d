package health

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Report describes connectivity to the service's dependencies.
type Report struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// CollectHealth pings the DB and Redis. Overall status is "ok" only when
// every dependency is connected.
func CollectHealth(ctx context.Context, db *gorm.DB, rdb *redis.Client) Report {
	report := Report{
		Status:       "ok",
		Dependencies: map[string]DependencyStatus{},
	}

	dbStatus := DependencyStatus{Status: "connected"}
	if db == nil {
		dbStatus = DependencyStatus{Status: "disconnected"}
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = DependencyStatus{Status: "disconnected", Error: err.Error()}
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = DependencyStatus{Status: "disconnected", Error: err.Error()}
	}
	report.Dependencies["database"] = dbStatus

	redisStatus := DependencyStatus{Status: "connected"}
	if rdb == nil {
		redisStatus = DependencyStatus{Status: "disconnected"}
	} else if err := rdb.Ping(ctx).Err(); err != nil {
		redisStatus = DependencyStatus{Status: "disconnected", Error: err.Error()}
	}
	report.Dependencies["redis"] = redisStatus

	if dbStatus.Status != "connected" || redisStatus.Status != "connected" {
		report.Status = "issue"
	}
	return report
}
