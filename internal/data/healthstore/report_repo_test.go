package healthstore

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"

	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/pkg/dbctx"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

func newTestRepo(t *testing.T) ReportRepo {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	db, err := Open(log, sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return NewReportRepo(db, log)
}

func TestReportRepoLatestByKind(t *testing.T) {
	repo := newTestRepo(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	reports := []*health.Report{
		{Connection: "shop", Kind: health.KindLight, Status: health.StatusOK, LatencyMS: 1.5, CheckedAt: t0},
		{Connection: "shop", Kind: health.KindLight, Status: health.StatusError, Error: "timeout", CheckedAt: t0.Add(time.Minute)},
		{Connection: "shop", Kind: health.KindDeep, Status: health.StatusOK, Payload: datatypes.JSON(`{"orders":{"row_count":3}}`), CheckedAt: t0},
		{Connection: "crm", Kind: health.KindLight, Status: health.StatusOK, CheckedAt: t0.Add(time.Hour)},
	}
	for _, r := range reports {
		if err := repo.Create(dbc, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if r.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("Create: id not assigned")
		}
	}

	light, err := repo.Latest(dbc, "shop", health.KindLight)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if light == nil || light.Status != health.StatusError || light.Error != "timeout" {
		t.Fatalf("Latest light: got=%+v", light)
	}
	deep, err := repo.Latest(dbc, "shop", health.KindDeep)
	if err != nil || deep == nil {
		t.Fatalf("Latest deep: got=%v err=%v", deep, err)
	}
	if string(deep.Payload) != `{"orders":{"row_count":3}}` {
		t.Fatalf("payload: got=%s", deep.Payload)
	}

	missing, err := repo.Latest(dbc, "nope", health.KindLight)
	if err != nil || missing != nil {
		t.Fatalf("Latest missing: want nil got=%v err=%v", missing, err)
	}

	recent, err := repo.ListRecent(dbc, "shop", 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Error != "timeout" {
		t.Fatalf("ListRecent: want newest first, got=%d reports", len(recent))
	}
}
