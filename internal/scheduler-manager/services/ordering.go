package services

import (
	"math"
	"sort"
	"time"

	"studio-scheduler-service/internal/scheduler-manager/catalog"
	"studio-scheduler-service/internal/scheduler-manager/db"
)

// EffectiveCategoryID picks the catalog category a quote item is shown under:
// the task's own classification, then the item's, then the catalog item's.
func EffectiveCategoryID(task *db.SchedulerTask, item *db.QuoteItem) *string {
	if task != nil && task.CatalogCategoryID != nil {
		return task.CatalogCategoryID
	}
	if item == nil {
		return nil
	}
	if item.ServiceCategoryID != nil {
		return item.ServiceCategoryID
	}
	if item.CatalogItem != nil && item.CatalogItem.ServiceCategoryID != nil {
		return item.CatalogItem.ServiceCategoryID
	}
	return nil
}

// OrderedItem is a quote line item with its task, in canonical order.
type OrderedItem struct {
	Item                db.QuoteItem      `json:"item"`
	Task                *db.SchedulerTask `json:"scheduler_task,omitempty"`
	EffectiveCategoryID *string           `json:"effective_category_id,omitempty"`
	SectionID           *string           `json:"section_id,omitempty"`
}

// OrderQuoteItems sorts items by stage then start date, then stably by the
// catalog section/category position. Items whose category is unknown to the
// catalog sort last. The returned tasks carry their effective category id.
// items must have SchedulerTask and CatalogItem preloaded.
func OrderQuoteItems(items []db.QuoteItem, structure *catalog.Structure) []OrderedItem {
	out := make([]OrderedItem, 0, len(items))
	for _, it := range items {
		task := it.SchedulerTask
		it.SchedulerTask = nil
		eff := EffectiveCategoryID(task, &it)
		oi := OrderedItem{Item: it, EffectiveCategoryID: eff}
		if task != nil {
			t := *task
			if eff != nil {
				t.CatalogCategoryID = eff
			}
			oi.Task = &t
		}
		if eff != nil {
			if sec, ok := structure.SectionOf(*eff); ok {
				oi.SectionID = strPtr(sec)
			}
		}
		out = append(out, oi)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := itemStage(out[i]), itemStage(out[j])
		if si != sj {
			return si < sj
		}
		return itemStart(out[i]).Before(itemStart(out[j]))
	})

	if structure.Empty() {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, bi := catalogPosition(structure, out[i].EffectiveCategoryID)
		aj, bj := catalogPosition(structure, out[j].EffectiveCategoryID)
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
	return out
}

func itemStage(oi OrderedItem) int {
	if oi.Task == nil {
		return db.StageIndex(db.CategoryPlanning)
	}
	return db.StageIndex(oi.Task.Category)
}

func itemStart(oi OrderedItem) time.Time {
	if oi.Task == nil {
		return time.Time{}
	}
	return oi.Task.StartDate
}

func catalogPosition(s *catalog.Structure, categoryID *string) (int, int) {
	if categoryID == nil {
		return math.MaxInt, math.MaxInt
	}
	sec, cat, ok := s.Position(*categoryID)
	if !ok {
		return math.MaxInt, math.MaxInt
	}
	return sec, cat
}

// Bucket kinds inside a stage.
const (
	BucketCatalog       = "catalog"
	BucketCustom        = "custom"
	BucketUncategorized = "uncategorized"
)

type CategoryBucket struct {
	Kind       string             `json:"kind"`
	CategoryID string             `json:"category_id,omitempty"`
	Name       string             `json:"name"`
	Tasks      []db.SchedulerTask `json:"tasks"`
	order      [2]int
}

type StageView struct {
	Stage      db.TaskCategory  `json:"stage"`
	Categories []CategoryBucket `json:"categories"`
}

type SectionView struct {
	SectionID string      `json:"section_id"`
	Name      string      `json:"name"`
	Stages    []StageView `json:"stages"`
}

// BuildStagedView groups catalog-linked and manual tasks by section, stage and
// category. Custom categories show up even when empty. Tasks pending deletion
// are left out.
func BuildStagedView(structure *catalog.Structure, ordered []OrderedItem, manual []db.SchedulerTask, custom []db.SchedulerCustomCategory) []SectionView {
	customByID := make(map[string]db.SchedulerCustomCategory, len(custom))
	for _, c := range custom {
		customByID[c.ID] = c
	}

	sectionNames := map[string]string{}
	sectionOrder := map[string]int{}
	categoryNames := map[string]string{}
	if structure != nil {
		for i, sec := range structure.Sections {
			sectionNames[sec.ID] = sec.Name
			sectionOrder[sec.ID] = i
			for _, cat := range sec.Categories {
				categoryNames[cat.ID] = cat.Name
			}
		}
	}

	type stageKey struct {
		section string
		stage   db.TaskCategory
	}
	buckets := map[stageKey]map[string]*CategoryBucket{}
	bucket := func(section string, stage db.TaskCategory, key string, mk func() *CategoryBucket) *CategoryBucket {
		sk := stageKey{section, stage}
		if buckets[sk] == nil {
			buckets[sk] = map[string]*CategoryBucket{}
		}
		b, ok := buckets[sk][key]
		if !ok {
			b = mk()
			buckets[sk][key] = b
		}
		return b
	}

	for _, c := range custom {
		c := c
		bucket(c.SectionID, c.Stage, BucketCustom+":"+c.ID, func() *CategoryBucket {
			return &CategoryBucket{Kind: BucketCustom, CategoryID: c.ID, Name: c.Name, order: [2]int{1, c.SortOrder}}
		})
	}

	place := func(task db.SchedulerTask) {
		if task.PendingDeletion {
			return
		}
		stage, _ := db.ParseCategory(string(task.Category))
		if task.SchedulerCustomCategoryID != nil {
			if c, ok := customByID[*task.SchedulerCustomCategoryID]; ok {
				b := bucket(c.SectionID, stage, BucketCustom+":"+c.ID, func() *CategoryBucket {
					return &CategoryBucket{Kind: BucketCustom, CategoryID: c.ID, Name: c.Name, order: [2]int{1, c.SortOrder}}
				})
				b.Tasks = append(b.Tasks, task)
				return
			}
		}
		if task.CatalogCategoryID != nil {
			if sec, ok := structure.SectionOf(*task.CatalogCategoryID); ok {
				id := *task.CatalogCategoryID
				_, ci, _ := structure.Position(id)
				b := bucket(sec, stage, BucketCatalog+":"+id, func() *CategoryBucket {
					return &CategoryBucket{Kind: BucketCatalog, CategoryID: id, Name: categoryNames[id], order: [2]int{0, ci}}
				})
				b.Tasks = append(b.Tasks, task)
				return
			}
		}
		section := derefString(task.SectionID)
		b := bucket(section, stage, BucketUncategorized, func() *CategoryBucket {
			return &CategoryBucket{Kind: BucketUncategorized, order: [2]int{2, 0}}
		})
		b.Tasks = append(b.Tasks, task)
	}

	for _, oi := range ordered {
		if oi.Task != nil {
			place(*oi.Task)
		}
	}
	for _, t := range manual {
		place(t)
	}

	sections := map[string]*SectionView{}
	for sk, bs := range buckets {
		sv, ok := sections[sk.section]
		if !ok {
			sv = &SectionView{SectionID: sk.section, Name: sectionNames[sk.section]}
			sections[sk.section] = sv
		}
		stage := StageView{Stage: sk.stage}
		for _, b := range bs {
			sort.SliceStable(b.Tasks, func(i, j int) bool {
				if b.Tasks[i].SortOrder != b.Tasks[j].SortOrder {
					return b.Tasks[i].SortOrder < b.Tasks[j].SortOrder
				}
				return b.Tasks[i].StartDate.Before(b.Tasks[j].StartDate)
			})
			stage.Categories = append(stage.Categories, *b)
		}
		sort.Slice(stage.Categories, func(i, j int) bool {
			a, b := stage.Categories[i], stage.Categories[j]
			if a.order != b.order {
				return a.order[0] < b.order[0] || (a.order[0] == b.order[0] && a.order[1] < b.order[1])
			}
			return a.Name < b.Name
		})
		sv.Stages = append(sv.Stages, stage)
	}

	out := make([]SectionView, 0, len(sections))
	for _, sv := range sections {
		sort.Slice(sv.Stages, func(i, j int) bool {
			return db.StageIndex(sv.Stages[i].Stage) < db.StageIndex(sv.Stages[j].Stage)
		})
		out = append(out, *sv)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := sectionOrder[out[i].SectionID]
		oj, jok := sectionOrder[out[j].SectionID]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i].SectionID < out[j].SectionID
	})
	return out
}
