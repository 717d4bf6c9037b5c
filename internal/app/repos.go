package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/dbdict-backend/internal/data/healthstore"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type Repos struct {
	HealthReports healthstore.ReportRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		HealthReports: healthstore.NewReportRepo(db, log),
	}
}
