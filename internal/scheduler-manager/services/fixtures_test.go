package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/db"
	"studio-scheduler-service/internal/scheduler-manager/financials"
	"studio-scheduler-service/internal/scheduler-manager/tenant"
	"studio-scheduler-service/pkg/logger"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func setupTestDB(t *testing.T) *gorm.DB {
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scheduler_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := gormDB.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

// MockCalendar records calendar calls.
type MockCalendar struct {
	mock.Mock
	mu sync.Mutex
}

func (m *MockCalendar) SyncTask(ctx context.Context, taskID string, t tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Called(taskID, t.StudioID).Error(0)
}

func (m *MockCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Called(calendarID, eventID).Error(0)
}

// fixture is one studio with an event, a crew member and an approved quote
// holding two items.
type fixture struct {
	DB       *gorm.DB
	Tenant   tenant.Tenant
	Event    db.Event
	Crew     db.CrewMember
	Quote    db.Quote
	Items    []db.QuoteItem
	Calendar *MockCalendar
	Tasks    *TaskService
	Payroll  *PayrollService
	Cats     *CategoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gormDB := setupTestDB(t)
	f := &fixture{DB: gormDB, Calendar: new(MockCalendar)}

	studio := db.Studio{Slug: "lumen", Name: "Lumen Studio"}
	require.NoError(t, gormDB.Create(&studio).Error)
	f.Tenant = tenant.Tenant{StudioID: studio.ID, Slug: studio.Slug}

	promise := "promise-1"
	f.Event = db.Event{StudioID: studio.ID, PromiseID: &promise, Name: "Wedding", EventDate: day(time.January, 1)}
	require.NoError(t, gormDB.Create(&f.Event).Error)

	f.Crew = db.CrewMember{StudioID: studio.ID, Name: "Ana", Email: "ana@example.com", IsActive: true}
	require.NoError(t, gormDB.Create(&f.Crew).Error)

	owner := db.StudioUser{StudioID: studio.ID, FullName: "Owner", Email: "owner@example.com", IsActive: true}
	require.NoError(t, gormDB.Create(&owner).Error)

	f.Quote = db.Quote{StudioID: studio.ID, EventID: f.Event.ID, PromiseID: &promise, Name: "Main", Status: db.QuoteStatusApproved}
	require.NoError(t, gormDB.Create(&f.Quote).Error)
	f.Items = []db.QuoteItem{
		{QuoteID: f.Quote.ID, Name: "Photography", UnitPrice: 900, Cost: 500, Quantity: 2, SortOrder: 0},
		{QuoteID: f.Quote.ID, Name: "Album", UnitPrice: 300, Cost: 0, Quantity: 1, SortOrder: 1},
	}
	require.NoError(t, gormDB.Create(&f.Items).Error)

	f.Payroll = NewPayrollService(gormDB, logger.NewNop(), nil)
	f.Cats = NewCategoryService(gormDB, logger.NewNop(), 30)
	f.Tasks = NewTaskService(TaskDeps{
		DB:         gormDB,
		Calendar:   f.Calendar,
		Catalog:    catalog.NewDBProvider(gormDB),
		Financials: financials.NewDBProvider(gormDB),
		Payroll:    f.Payroll,
		Log:        logger.NewNop(),
	}, TaskServiceOptions{CalendarSyncRPS: 1000})
	f.Tasks.now = func() time.Time { return day(time.February, 1) }
	return f
}

func (f *fixture) instance(t *testing.T, from, to time.Time) *db.SchedulerInstance {
	t.Helper()
	inst, _, err := f.Tasks.GetOrCreateInstance(context.Background(), f.Tenant, f.Event.ID, &DateRange{From: from, To: to})
	require.NoError(t, err)
	return inst
}

func (f *fixture) reload(t *testing.T, id string) db.SchedulerTask {
	t.Helper()
	var task db.SchedulerTask
	require.NoError(t, f.DB.First(&task, "id = ?", id).Error)
	return task
}

func (f *fixture) itemTask(t *testing.T, item db.QuoteItem, start, end time.Time) db.SchedulerTask {
	t.Helper()
	res, err := f.Tasks.CreateFromQuoteItem(context.Background(), f.Tenant, f.Event.ID, QuoteItemTaskInput{
		ItemID: item.ID, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	return *res.Task
}
