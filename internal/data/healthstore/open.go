package healthstore

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/platform/envutil"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// OpenFromEnv opens the report database: Postgres when HEALTH_DB_DSN is set,
// otherwise a SQLite file at HEALTH_DB_PATH.
func OpenFromEnv(logg *logger.Logger) (*gorm.DB, error) {
	if dsn := strings.TrimSpace(os.Getenv("HEALTH_DB_DSN")); dsn != "" {
		return Open(logg, postgres.Open(dsn))
	}
	path := envutil.String("HEALTH_DB_PATH", filepath.Join("artifacts", "health.db"))
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create health db dir: %w", err)
		}
	}
	return Open(logg, sqlite.Open(path))
}

// Open connects through dialector and migrates the report table.
func Open(logg *logger.Logger, dialector gorm.Dialector) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open health db: %w", err)
	}
	if err := db.AutoMigrate(&health.Report{}); err != nil {
		return nil, fmt.Errorf("migrate health db: %w", err)
	}
	if logg != nil {
		logg.Info("health db ready", "dialect", dialector.Name())
	}
	return db, nil
}
