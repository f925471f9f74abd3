package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/db"
)

func TestEffectiveCategoryID_Precedence(t *testing.T) {
	taskCat, itemCat, catalogCat := "task-cat", "item-cat", "catalog-cat"
	for mask := 0; mask < 8; mask++ {
		hasTask, hasItem, hasCatalog := mask&1 != 0, mask&2 != 0, mask&4 != 0
		t.Run(fmt.Sprintf("task=%v/item=%v/catalog=%v", hasTask, hasItem, hasCatalog), func(t *testing.T) {
			task := &db.SchedulerTask{}
			item := &db.QuoteItem{CatalogItem: &db.CatalogItem{}}
			if hasTask {
				task.CatalogCategoryID = &taskCat
			}
			if hasItem {
				item.ServiceCategoryID = &itemCat
			}
			if hasCatalog {
				item.CatalogItem.ServiceCategoryID = &catalogCat
			}

			got := EffectiveCategoryID(task, item)
			switch {
			case hasTask:
				require.NotNil(t, got)
				assert.Equal(t, taskCat, *got)
			case hasItem:
				require.NotNil(t, got)
				assert.Equal(t, itemCat, *got)
			case hasCatalog:
				require.NotNil(t, got)
				assert.Equal(t, catalogCat, *got)
			default:
				assert.Nil(t, got)
			}
		})
	}
}

func TestEffectiveCategoryID_NilInputs(t *testing.T) {
	assert.Nil(t, EffectiveCategoryID(nil, nil))
	cat := "c"
	assert.Equal(t, &cat, EffectiveCategoryID(nil, &db.QuoteItem{ServiceCategoryID: &cat}))
}

func testStructure() *catalog.Structure {
	return catalog.NewStructure([]catalog.Section{
		{ID: "sec-post", Name: "Post", Order: 2, Categories: []catalog.Category{{ID: "edit", Name: "Editing", Order: 0}}},
		{ID: "sec-shoot", Name: "Shoot", Order: 1, Categories: []catalog.Category{
			{ID: "video", Name: "Video", Order: 1},
			{ID: "photo", Name: "Photo", Order: 0},
		}},
	})
}

func TestOrderQuoteItems_StageThenStart(t *testing.T) {
	mk := func(id string, stage db.TaskCategory, start time.Time) db.QuoteItem {
		it := db.QuoteItem{Name: id}
		it.ID = id
		it.SchedulerTask = &db.SchedulerTask{Category: stage, StartDate: start}
		return it
	}
	items := []db.QuoteItem{
		mk("delivery", db.CategoryDelivery, day(time.January, 1)),
		mk("prod-late", db.CategoryProduction, day(time.January, 9)),
		{Name: "no-task", Base: db.Base{ID: "no-task"}},
		mk("prod-early", db.CategoryProduction, day(time.January, 2)),
	}
	got := OrderQuoteItems(items, nil)
	ids := make([]string, len(got))
	for i, oi := range got {
		ids[i] = oi.Item.ID
	}
	assert.Equal(t, []string{"no-task", "prod-early", "prod-late", "delivery"}, ids)
}

func TestOrderQuoteItems_CatalogOrderAndEcho(t *testing.T) {
	photo, video, edit, unknown := "photo", "video", "edit", "gone"
	items := []db.QuoteItem{
		{Base: db.Base{ID: "i-unknown"}, ServiceCategoryID: &unknown},
		{Base: db.Base{ID: "i-edit"}, ServiceCategoryID: &edit},
		{Base: db.Base{ID: "i-video"}, CatalogItem: &db.CatalogItem{ServiceCategoryID: &video},
			SchedulerTask: &db.SchedulerTask{Category: db.CategoryProduction}},
		{Base: db.Base{ID: "i-photo"}, ServiceCategoryID: &video,
			SchedulerTask: &db.SchedulerTask{Category: db.CategoryProduction, CatalogCategoryID: &photo}},
	}
	got := OrderQuoteItems(items, testStructure())
	ids := make([]string, len(got))
	for i, oi := range got {
		ids[i] = oi.Item.ID
		assert.Nil(t, oi.Item.SchedulerTask)
	}
	assert.Equal(t, []string{"i-photo", "i-video", "i-edit", "i-unknown"}, ids)

	require.NotNil(t, got[1].Task)
	require.NotNil(t, got[1].Task.CatalogCategoryID)
	assert.Equal(t, video, *got[1].Task.CatalogCategoryID)
	assert.Equal(t, "sec-shoot", *got[1].SectionID)
	assert.Nil(t, got[3].SectionID)
}

func TestBuildStagedView(t *testing.T) {
	photo := "photo"
	custom := db.SchedulerCustomCategory{SectionID: "sec-shoot", Stage: db.CategoryProduction, Name: "Drone", SortOrder: 0}
	custom.ID = "cc-1"
	empty := db.SchedulerCustomCategory{SectionID: "sec-post", Stage: db.CategoryReview, Name: "Client review"}
	empty.ID = "cc-2"

	ordered := []OrderedItem{{Task: &db.SchedulerTask{Name: "Photos", Category: db.CategoryProduction, CatalogCategoryID: &photo, SortOrder: 1}}}
	manual := []db.SchedulerTask{
		{Name: "Drone pass", Category: db.CategoryProduction, SchedulerCustomCategoryID: &custom.ID},
		{Name: "Scout", Category: db.CategoryProduction, CatalogCategoryID: &photo, SortOrder: 0},
		{Name: "Loose", Category: db.CategoryPlanning},
		{Name: "Removed", Category: db.CategoryPlanning, PendingDeletion: true},
	}

	view := BuildStagedView(testStructure(), ordered, manual, []db.SchedulerCustomCategory{custom, empty})
	require.Len(t, view, 3)
	assert.Equal(t, "sec-shoot", view[0].SectionID)
	assert.Equal(t, "sec-post", view[1].SectionID)
	assert.Equal(t, "", view[2].SectionID)

	shoot := view[0].Stages
	require.Len(t, shoot, 1)
	require.Len(t, shoot[0].Categories, 2)
	assert.Equal(t, BucketCatalog, shoot[0].Categories[0].Kind)
	assert.Equal(t, "Photo", shoot[0].Categories[0].Name)
	require.Len(t, shoot[0].Categories[0].Tasks, 2)
	assert.Equal(t, "Scout", shoot[0].Categories[0].Tasks[0].Name)
	assert.Equal(t, "Photos", shoot[0].Categories[0].Tasks[1].Name)
	assert.Equal(t, BucketCustom, shoot[0].Categories[1].Kind)

	post := view[1].Stages
	require.Len(t, post, 1)
	assert.Equal(t, db.CategoryReview, post[0].Stage)
	assert.Empty(t, post[0].Categories[0].Tasks)

	loose := view[2].Stages
	require.Len(t, loose, 1)
	require.Len(t, loose[0].Categories, 1)
	assert.Equal(t, BucketUncategorized, loose[0].Categories[0].Kind)
	assert.Len(t, loose[0].Categories[0].Tasks, 1)
}
