package healthstore

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/pkg/dbctx"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type ReportRepo interface {
	Create(dbc dbctx.Context, r *health.Report) error
	// Latest returns the newest report of kind for connection, or nil.
	Latest(dbc dbctx.Context, connection, kind string) (*health.Report, error)
	ListRecent(dbc dbctx.Context, connection string, limit int) ([]*health.Report, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{
		db:  db,
		log: baseLog.With("repo", "HealthReportRepo"),
	}
}

func (r *reportRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *reportRepo) Create(dbc dbctx.Context, rep *health.Report) error {
	if rep == nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Create(rep).Error
}

func (r *reportRepo) Latest(dbc dbctx.Context, connection, kind string) (*health.Report, error) {
	var out health.Report
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("connection = ? AND kind = ?", connection, kind).
		Order("checked_at DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reportRepo) ListRecent(dbc dbctx.Context, connection string, limit int) ([]*health.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*health.Report
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("connection = ?", connection).
		Order("checked_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
