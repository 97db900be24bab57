package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

var errSignupCodeTaken = errors.New("signup code already in use")

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

// row getters, the caller holds the lock

func (repo *schoolRepository) school(id string) (*schoolRow, bool) {
	row, ok := repo.db.schools[id]
	return row, ok && row.deletedAt == nil
}

func (repo *schoolRepository) teacher(id string) (*teacherRow, bool) {
	row, ok := repo.db.teachers[id]
	return row, ok && row.deletedAt == nil
}

func (repo *schoolRepository) class(id string) (*classRow, bool) {
	row, ok := repo.db.classes[id]
	return row, ok && row.deletedAt == nil
}

func (repo *schoolRepository) gradeGroup(id string) (*gradeGroupRow, bool) {
	row, ok := repo.db.gradeGroups[id]
	return row, ok && row.deletedAt == nil
}

func (repo *schoolRepository) prize(id string) (*prizeRow, bool) {
	row, ok := repo.db.prizes[id]
	return row, ok && row.deletedAt == nil
}

// Schools

func (repo *schoolRepository) schoolEmailTaken(email string, excludedIDs ...string) bool {
	for _, row := range repo.db.schools {
		if row.deletedAt == nil && row.Email == email && !contains(excludedIDs, row.ID) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) userEmailTaken(email string) bool {
	for _, row := range repo.db.users {
		if row.deletedAt == nil && row.Email == email {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, admin user.User) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.schoolEmailTaken(sch.Email) {
		return school.School{}, school.ErrEmailExists
	}
	if repo.userEmailTaken(admin.Email) {
		return school.School{}, user.ErrEmailExists
	}
	repo.db.schools[sch.ID] = &schoolRow{School: sch}
	admin.SchoolID = sch.ID
	repo.db.users[admin.ID] = &userRow{User: admin}
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.school(id); ok {
		return row.School, nil
	}
	return school.School{}, school.ErrSchoolNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter school.SchoolFilter) ([]school.School, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0)
	for _, row := range repo.db.schools {
		switch {
		case row.deletedAt != nil,
			filter.IDs != nil && !contains(filter.IDs, row.ID),
			filter.Status != "" && row.Status != filter.Status,
			!matches(filter.Search, row.Name, row.Email, row.Address):
			continue
		}
		schools = append(schools, row.School)
	}
	sort.Slice(schools, func(i, j int) bool {
		if !schools[i].CreatedAt.Equal(schools[j].CreatedAt) {
			return schools[i].CreatedAt.After(schools[j].CreatedAt)
		}
		return schools[i].ID < schools[j].ID
	})
	return core.Paginate(schools, filter.Page), len(schools), nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.school(sch.ID)
	if !ok {
		return school.School{}, school.ErrSchoolNotFound
	}
	if repo.schoolEmailTaken(sch.Email, sch.ID) {
		return school.School{}, school.ErrEmailExists
	}
	sch.CreatedAt = row.CreatedAt
	row.School = sch
	return sch, nil
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.school(id)
	if !ok {
		return school.ErrSchoolNotFound
	}
	t := now()
	for _, r := range repo.db.earnedPrizes {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	for _, r := range repo.db.prizes {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	for _, r := range repo.db.gradeGroups {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	for _, r := range repo.db.classes {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	for _, r := range repo.db.teachers {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	for _, r := range repo.db.users {
		if r.deletedAt == nil && r.SchoolID == id {
			r.deletedAt = &t
		}
	}
	row.deletedAt = &t
	return nil
}

func (repo *schoolRepository) SchoolEmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.schoolEmailTaken(email, excludedIDs...), nil
}

// Teachers

func (repo *schoolRepository) teacherClassIDs(teacherID string) []string {
	links := make([]*linkRow, 0)
	for _, l := range repo.db.links {
		if l.teacherID != teacherID {
			continue
		}
		if _, ok := repo.class(l.classID); ok {
			links = append(links, l)
		}
	}
	sortLinks(links)
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.classID)
	}
	return ids
}

func (repo *schoolRepository) withClassIDs(t school.Teacher) school.Teacher {
	t.ClassIDs = repo.teacherClassIDs(t.ID)
	return t
}

func (repo *schoolRepository) signupCodeTaken(code, excludedID string) bool {
	if code == "" {
		return false
	}
	for _, row := range repo.db.teachers {
		if row.deletedAt == nil && row.SignupCode == code && row.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, tchr school.Teacher) (school.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.signupCodeTaken(tchr.SignupCode, "") {
		return school.Teacher{}, errSignupCodeTaken
	}
	classIDs := tchr.ClassIDs
	tchr.ClassIDs = nil
	repo.db.teachers[tchr.ID] = &teacherRow{Teacher: tchr}
	repo.setLinks(func(l *linkRow) bool { return l.teacherID == tchr.ID }, classIDs, func(id string) *linkRow {
		return &linkRow{classID: id, teacherID: tchr.ID}
	})
	return repo.withClassIDs(tchr), nil
}

func (repo *schoolRepository) GetTeacher(_ context.Context, filter school.TeacherGetFilter) (school.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID == "" && filter.Email == "" && filter.SignupCode == "" {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	for _, row := range repo.db.teachers {
		switch {
		case row.deletedAt != nil,
			filter.ID != "" && row.ID != filter.ID,
			filter.Email != "" && row.Email != filter.Email,
			filter.SignupCode != "" && row.SignupCode != filter.SignupCode:
			continue
		}
		return repo.withClassIDs(row.Teacher), nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) QueryTeachers(_ context.Context, filter school.TeacherFilter) ([]school.Teacher, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	teachers := make([]school.Teacher, 0)
	for _, row := range repo.db.teachers {
		switch {
		case row.deletedAt != nil,
			filter.Unassigned && row.SchoolID != "",
			filter.SchoolID != "" && row.SchoolID != filter.SchoolID,
			filter.Status != "" && row.Status != filter.Status,
			!matches(filter.Search, row.Name, row.Email):
			continue
		}
		teachers = append(teachers, row.Teacher)
	}
	sort.Slice(teachers, func(i, j int) bool {
		if !teachers[i].CreatedAt.Equal(teachers[j].CreatedAt) {
			return teachers[i].CreatedAt.After(teachers[j].CreatedAt)
		}
		return teachers[i].ID < teachers[j].ID
	})

	page := core.Paginate(teachers, filter.Page)
	for i := range page {
		page[i] = repo.withClassIDs(page[i])
	}
	return page, len(teachers), nil
}

func (repo *schoolRepository) UpdateTeacher(_ context.Context, tchr school.Teacher) (school.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.teacher(tchr.ID)
	if !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	if repo.signupCodeTaken(tchr.SignupCode, tchr.ID) {
		return school.Teacher{}, errSignupCodeTaken
	}
	tchr.CreatedAt = row.CreatedAt
	tchr.ClassIDs = nil
	row.Teacher = tchr
	return repo.withClassIDs(tchr), nil
}

func (repo *schoolRepository) DeleteTeacher(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.teacher(id)
	if !ok {
		return school.ErrTeacherNotFound
	}
	t := now()
	row.deletedAt = &t
	return nil
}

func (repo *schoolRepository) TeacherEmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, row := range repo.db.teachers {
		if row.deletedAt == nil && row.Email == email && !contains(excludedIDs, row.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) SignupCodeExists(_ context.Context, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.signupCodeTaken(code, ""), nil
}

// Class-teacher links

// setLinks replaces the links selected by `owned` with one link per id, keeping the date of links that remain.
func (repo *schoolRepository) setLinks(owned func(l *linkRow) bool, ids []string, newLink func(id string) *linkRow) {
	kept := make(map[string]*linkRow)
	links := make([]*linkRow, 0, len(repo.db.links)+len(ids))
	for _, l := range repo.db.links {
		if owned(l) {
			kept[l.classID+"/"+l.teacherID] = l
			continue
		}
		links = append(links, l)
	}

	t := now()
	for i, id := range ids {
		l := newLink(id)
		if old, ok := kept[l.classID+"/"+l.teacherID]; ok {
			l.createdAt = old.createdAt
		} else {
			l.createdAt = t.Add(time.Duration(i))
		}
		links = append(links, l)
	}
	repo.db.links = links
}

func (repo *schoolRepository) SetTeacherClasses(_ context.Context, teacherID string, classIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.teacher(teacherID); !ok {
		return school.ErrTeacherNotFound
	}
	repo.setLinks(func(l *linkRow) bool { return l.teacherID == teacherID }, classIDs, func(id string) *linkRow {
		return &linkRow{classID: id, teacherID: teacherID}
	})
	return nil
}

func (repo *schoolRepository) SetClassTeachers(_ context.Context, classID string, teacherIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.class(classID); !ok {
		return school.ErrClassNotFound
	}
	repo.setLinks(func(l *linkRow) bool { return l.classID == classID }, teacherIDs, func(id string) *linkRow {
		return &linkRow{classID: classID, teacherID: id}
	})
	return nil
}

func (repo *schoolRepository) ClassTeacherLinks(_ context.Context, classID string) ([]school.TeacherLink, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	links := make([]*linkRow, 0)
	for _, l := range repo.db.links {
		if l.classID == classID {
			links = append(links, l)
		}
	}
	sortLinks(links)

	out := make([]school.TeacherLink, 0, len(links))
	for _, l := range links {
		tl := school.TeacherLink{TeacherID: l.teacherID, TeacherDeleted: true, LinkedAt: l.createdAt}
		if row, ok := repo.db.teachers[l.teacherID]; ok {
			tl.TeacherName = row.Name
			tl.TeacherDeleted = row.deletedAt != nil
		}
		out = append(out, tl)
	}
	return out, nil
}

func (repo *schoolRepository) TeacherClassIDs(_ context.Context, teacherID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.teacherClassIDs(teacherID), nil
}

func sortLinks(links []*linkRow) {
	sort.SliceStable(links, func(i, j int) bool { return links[i].createdAt.Before(links[j].createdAt) })
}

// Stats

func (repo *schoolRepository) CountSchools(_ context.Context, status string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, row := range repo.db.schools {
		if row.deletedAt == nil && (status == "" || row.Status == status) {
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CountTeachers(_ context.Context, schoolID, status string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, row := range repo.db.teachers {
		if row.deletedAt == nil && (schoolID == "" || row.SchoolID == schoolID) && (status == "" || row.Status == status) {
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CountClasses(_ context.Context, schoolID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, row := range repo.db.classes {
		if row.deletedAt == nil && (schoolID == "" || row.SchoolID == schoolID) {
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) SumStudents(_ context.Context, schoolID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, row := range repo.db.classes {
		if row.deletedAt == nil && (schoolID == "" || row.SchoolID == schoolID) {
			n += row.StudentCount
		}
	}
	return n, nil
}
