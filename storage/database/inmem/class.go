package inmemdb

import (
	"context"
	"sort"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/grade"
	"github.com/fitprize/fitprize/core/school"
)

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.school(cls.SchoolID); !ok {
		return school.Class{}, school.ErrSchoolNotFound
	}
	repo.db.classes[cls.ID] = &classRow{Class: cls}
	return cls, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string) (school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.class(id); ok {
		return row.Class, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) GetClasses(_ context.Context, ids []string) ([]school.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]school.Class, 0, len(ids))
	for _, id := range ids {
		if row, ok := repo.class(id); ok {
			classes = append(classes, row.Class)
		}
	}
	return classes, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter) ([]school.Class, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	want := grade.Normalize(filter.Grade)
	classes := make([]school.Class, 0)
	for _, row := range repo.db.classes {
		switch {
		case row.deletedAt != nil,
			filter.IDs != nil && !contains(filter.IDs, row.ID),
			filter.SchoolID != "" && row.SchoolID != filter.SchoolID,
			want != "" && grade.Normalize(row.Grade) != want,
			!matches(filter.Search, row.Name, row.Section, row.Grade):
			continue
		}
		classes = append(classes, row.Class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if !classes[i].CreatedAt.Equal(classes[j].CreatedAt) {
			return classes[i].CreatedAt.After(classes[j].CreatedAt)
		}
		return classes[i].ID < classes[j].ID
	})
	return core.Paginate(classes, filter.Page), len(classes), nil
}

func (repo *schoolRepository) UpdateClass(_ context.Context, cls school.Class) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.class(cls.ID)
	if !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	// minutes only move through AddClassMinutes
	cls.FitnessMinutes = row.FitnessMinutes
	cls.SchoolID = row.SchoolID
	cls.CreatedAt = row.CreatedAt
	row.Class = cls
	return cls, nil
}

func (repo *schoolRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.class(id)
	if !ok {
		return school.ErrClassNotFound
	}
	t := now()
	row.deletedAt = &t
	return nil
}

func (repo *schoolRepository) AddClassMinutes(_ context.Context, classID string, minutes int) (school.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.class(classID)
	if !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	if minutes > school.MaxMinutes-row.FitnessMinutes {
		return school.Class{}, school.ErrMinutesOverflow
	}
	row.FitnessMinutes += minutes
	row.UpdatedAt = now()
	return row.Class, nil
}
