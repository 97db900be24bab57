package inmemdb

import (
	"context"
	"sort"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
)

// inSchool applies the school scoping of grade groups and prizes: one school, or every school when empty,
// and the records without a school only when includeOrphans is set.
func inSchool(recordSchoolID, schoolID string, includeOrphans bool) bool {
	if recordSchoolID == "" {
		return includeOrphans
	}
	return schoolID == "" || recordSchoolID == schoolID
}

// Grade groups

func (repo *schoolRepository) groupWithClasses(row *gradeGroupRow) school.GradeGroup {
	grp := row.GradeGroup
	ids := make([]string, 0, len(row.ClassIDs))
	for _, id := range row.ClassIDs {
		if _, ok := repo.class(id); ok {
			ids = append(ids, id)
		}
	}
	grp.ClassIDs = ids
	return grp
}

func (repo *schoolRepository) CreateGradeGroup(_ context.Context, grp school.GradeGroup) (school.GradeGroup, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ClassIDs = append([]string{}, grp.ClassIDs...)
	row := &gradeGroupRow{GradeGroup: grp}
	repo.db.gradeGroups[grp.ID] = row
	return repo.groupWithClasses(row), nil
}

func (repo *schoolRepository) GetGradeGroup(_ context.Context, id string) (school.GradeGroup, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.gradeGroup(id); ok {
		return repo.groupWithClasses(row), nil
	}
	return school.GradeGroup{}, school.ErrGradeGroupNotFound
}

func (repo *schoolRepository) QueryGradeGroups(_ context.Context, filter school.GradeGroupFilter) ([]school.GradeGroup, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]school.GradeGroup, 0)
	for _, row := range repo.db.gradeGroups {
		if row.deletedAt != nil || !inSchool(row.SchoolID, filter.SchoolID, filter.IncludeOrphans) {
			continue
		}
		groups = append(groups, repo.groupWithClasses(row))
	}
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].CreatedAt.Equal(groups[j].CreatedAt) {
			return groups[i].CreatedAt.Before(groups[j].CreatedAt)
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

func (repo *schoolRepository) UpdateGradeGroup(_ context.Context, grp school.GradeGroup) (school.GradeGroup, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.gradeGroup(grp.ID)
	if !ok {
		return school.GradeGroup{}, school.ErrGradeGroupNotFound
	}
	grp.CreatedAt = row.CreatedAt
	grp.SchoolID = row.SchoolID
	grp.ClassIDs = append([]string{}, grp.ClassIDs...)
	row.GradeGroup = grp
	return repo.groupWithClasses(row), nil
}

func (repo *schoolRepository) DeleteGradeGroup(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.gradeGroup(id)
	if !ok {
		return school.ErrGradeGroupNotFound
	}
	t := now()
	for _, p := range repo.db.prizes {
		if p.deletedAt == nil && p.GradeGroupID == id {
			p.deletedAt = &t
		}
	}
	row.deletedAt = &t
	return nil
}

// Prizes

func (repo *schoolRepository) prizeWithGroup(row *prizeRow) school.Prize {
	prz := row.Prize
	if grp, ok := repo.db.gradeGroups[prz.GradeGroupID]; ok {
		prz.GradeGroupName = grp.Name
	}
	return prz
}

func sortLadder(prizes []school.Prize) {
	sort.Slice(prizes, func(i, j int) bool {
		pi, pj := prizes[i], prizes[j]
		if pi.MinutesRequired != pj.MinutesRequired {
			return pi.MinutesRequired < pj.MinutesRequired
		}
		if !pi.CreatedAt.Equal(pj.CreatedAt) {
			return pi.CreatedAt.Before(pj.CreatedAt)
		}
		return pi.ID < pj.ID
	})
}

func (repo *schoolRepository) CreatePrize(_ context.Context, prz school.Prize) (school.Prize, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.gradeGroup(prz.GradeGroupID); !ok {
		return school.Prize{}, school.ErrGradeGroupNotFound
	}
	row := &prizeRow{Prize: prz}
	repo.db.prizes[prz.ID] = row
	return repo.prizeWithGroup(row), nil
}

func (repo *schoolRepository) GetPrize(_ context.Context, id string) (school.Prize, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.prize(id); ok {
		return repo.prizeWithGroup(row), nil
	}
	return school.Prize{}, school.ErrPrizeNotFound
}

func (repo *schoolRepository) QueryPrizes(_ context.Context, filter school.PrizeFilter) ([]school.Prize, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prizes := make([]school.Prize, 0)
	for _, row := range repo.db.prizes {
		switch {
		case row.deletedAt != nil,
			!inSchool(row.SchoolID, filter.SchoolID, filter.IncludeOrphans),
			filter.GradeGroupIDs != nil && !contains(filter.GradeGroupIDs, row.GradeGroupID):
			continue
		}
		prizes = append(prizes, repo.prizeWithGroup(row))
	}
	sortLadder(prizes)
	return core.Paginate(prizes, filter.Page), len(prizes), nil
}

func (repo *schoolRepository) UpdatePrize(_ context.Context, prz school.Prize) (school.Prize, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.prize(prz.ID)
	if !ok {
		return school.Prize{}, school.ErrPrizeNotFound
	}
	prz.CreatedAt = row.CreatedAt
	prz.SchoolID = row.SchoolID
	row.Prize = prz
	return repo.prizeWithGroup(row), nil
}

func (repo *schoolRepository) DeletePrize(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.prize(id)
	if !ok {
		return school.ErrPrizeNotFound
	}
	t := now()
	row.deletedAt = &t
	return nil
}

func (repo *schoolRepository) SchoolLadder(_ context.Context, schoolID string) ([]school.Prize, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prizes := make([]school.Prize, 0)
	for _, row := range repo.db.prizes {
		if row.deletedAt == nil && row.SchoolID == schoolID {
			prizes = append(prizes, repo.prizeWithGroup(row))
		}
	}
	sortLadder(prizes)
	return prizes, nil
}

// Earned prizes

func (repo *schoolRepository) earnedWithDetails(row *earnedPrizeRow) school.EarnedPrize {
	ep := row.EarnedPrize
	if p, ok := repo.db.prizes[ep.PrizeID]; ok {
		ep.PrizeName = p.Name
		ep.PrizeIcon = p.Icon
	}
	if c, ok := repo.db.classes[ep.ClassID]; ok {
		ep.ClassName = c.Name
	}
	return ep
}

func (repo *schoolRepository) CreateEarnedPrize(_ context.Context, ep school.EarnedPrize) (school.EarnedPrize, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, row := range repo.db.earnedPrizes {
		if row.deletedAt == nil && row.PrizeID == ep.PrizeID && row.ClassID == ep.ClassID {
			return school.EarnedPrize{}, school.ErrEarnedPrizeExists
		}
	}
	row := &earnedPrizeRow{EarnedPrize: ep}
	repo.db.earnedPrizes[ep.ID] = row
	return repo.earnedWithDetails(row), nil
}

func (repo *schoolRepository) GetEarnedPrize(_ context.Context, id string) (school.EarnedPrize, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.earnedPrizes[id]; ok && row.deletedAt == nil {
		return repo.earnedWithDetails(row), nil
	}
	return school.EarnedPrize{}, school.ErrEarnedPrizeNotFound
}

func (repo *schoolRepository) QueryEarnedPrizes(_ context.Context, filter school.EarnedPrizeFilter) ([]school.EarnedPrize, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	eps := make([]school.EarnedPrize, 0)
	for _, row := range repo.db.earnedPrizes {
		switch {
		case row.deletedAt != nil,
			filter.SchoolID != "" && row.SchoolID != filter.SchoolID,
			filter.ClassID != "" && row.ClassID != filter.ClassID,
			filter.Delivered != nil && row.Delivered != *filter.Delivered:
			continue
		}
		eps = append(eps, repo.earnedWithDetails(row))
	}
	sort.Slice(eps, func(i, j int) bool {
		if !eps[i].EarnedAt.Equal(eps[j].EarnedAt) {
			return eps[i].EarnedAt.After(eps[j].EarnedAt)
		}
		return eps[i].ID < eps[j].ID
	})
	return core.Paginate(eps, filter.Page), len(eps), nil
}

func (repo *schoolRepository) CountEarnedPrizes(_ context.Context, classID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, row := range repo.db.earnedPrizes {
		if row.deletedAt == nil && row.ClassID == classID {
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) UpdateEarnedPrize(_ context.Context, ep school.EarnedPrize) (school.EarnedPrize, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.earnedPrizes[ep.ID]
	if !ok || row.deletedAt != nil {
		return school.EarnedPrize{}, school.ErrEarnedPrizeNotFound
	}
	row.Delivered = ep.Delivered
	row.UpdatedAt = ep.UpdatedAt
	return repo.earnedWithDetails(row), nil
}
