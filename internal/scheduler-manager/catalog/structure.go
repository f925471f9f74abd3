// Package catalog reads the studio's shared section/category structure.
// The scheduler never writes it.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"studio-scheduler-service/internal/scheduler-manager/db"
)

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type Section struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Order      int        `json:"order"`
	Categories []Category `json:"categories"`
}

// Structure is the ordered sections -> categories tree of a studio.
type Structure struct {
	Sections []Section `json:"sections"`

	index map[string]position
}

type position struct {
	section  int
	category int
}

// Position of a catalog category inside the canonical order.
func (s *Structure) Position(categoryID string) (section, category int, ok bool) {
	if s == nil {
		return 0, 0, false
	}
	if s.index == nil {
		s.buildIndex()
	}
	p, ok := s.index[categoryID]
	return p.section, p.category, ok
}

// SectionOf returns the id of the section owning categoryID.
func (s *Structure) SectionOf(categoryID string) (string, bool) {
	si, _, ok := s.Position(categoryID)
	if !ok {
		return "", false
	}
	return s.Sections[si].ID, true
}

func (s *Structure) Empty() bool {
	if s == nil {
		return true
	}
	for _, sec := range s.Sections {
		if len(sec.Categories) > 0 {
			return false
		}
	}
	return true
}

func (s *Structure) buildIndex() {
	s.index = make(map[string]position)
	for si, sec := range s.Sections {
		for ci, cat := range sec.Categories {
			s.index[cat.ID] = position{section: si, category: ci}
		}
	}
}

// NewStructure sorts sections and categories by their order and indexes them.
func NewStructure(sections []Section) *Structure {
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	for i := range sections {
		cats := sections[i].Categories
		sort.SliceStable(cats, func(a, b int) bool { return cats[a].Order < cats[b].Order })
	}
	s := &Structure{Sections: sections}
	s.buildIndex()
	return s
}

// Provider supplies the catalog structure of a studio.
type Provider interface {
	GetCatalogStructure(ctx context.Context, studioID string) (*Structure, error)
}

// DBProvider reads the structure from the catalog tables.
type DBProvider struct {
	DB *gorm.DB
}

func NewDBProvider(gormDB *gorm.DB) *DBProvider {
	return &DBProvider{DB: gormDB}
}

func (p *DBProvider) GetCatalogStructure(ctx context.Context, studioID string) (*Structure, error) {
	var sections []db.CatalogSection
	if err := p.DB.WithContext(ctx).Where("studio_id = ?", studioID).Order("sort_order, name").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("load catalog sections: %w", err)
	}
	var categories []db.CatalogCategory
	if err := p.DB.WithContext(ctx).Where("studio_id = ?", studioID).Order("sort_order, name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load catalog categories: %w", err)
	}

	out := make([]Section, 0, len(sections))
	bySection := make(map[string]int, len(sections))
	for _, sec := range sections {
		bySection[sec.ID] = len(out)
		out = append(out, Section{ID: sec.ID, Name: sec.Name, Order: sec.SortOrder})
	}
	for _, cat := range categories {
		i, ok := bySection[cat.SectionID]
		if !ok {
			continue
		}
		out[i].Categories = append(out[i].Categories, Category{ID: cat.ID, Name: cat.Name, Order: cat.SortOrder})
	}
	return NewStructure(out), nil
}
