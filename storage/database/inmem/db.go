// Package inmemdb is an in-memory store honoring the same contracts as the Postgres repositories,
// soft deletes and unique constraints included. It backs tests and the memory engine.
package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

type (
	// DB holds every table under one lock so cascades and constraints apply atomically.
	DB struct {
		mutex sync.RWMutex

		users        map[string]*userRow
		schools      map[string]*schoolRow
		teachers     map[string]*teacherRow
		classes      map[string]*classRow
		links        []*linkRow
		gradeGroups  map[string]*gradeGroupRow
		prizes       map[string]*prizeRow
		earnedPrizes map[string]*earnedPrizeRow
	}

	userRow struct {
		user.User
		deletedAt *time.Time
	}

	schoolRow struct {
		school.School
		deletedAt *time.Time
	}

	teacherRow struct {
		school.Teacher
		deletedAt *time.Time
	}

	classRow struct {
		school.Class
		deletedAt *time.Time
	}

	linkRow struct {
		classID   string
		teacherID string
		createdAt time.Time
	}

	gradeGroupRow struct {
		school.GradeGroup
		deletedAt *time.Time
	}

	prizeRow struct {
		school.Prize
		deletedAt *time.Time
	}

	earnedPrizeRow struct {
		school.EarnedPrize
		deletedAt *time.Time
	}
)

func Open() *DB {
	return &DB{
		users:        make(map[string]*userRow),
		schools:      make(map[string]*schoolRow),
		teachers:     make(map[string]*teacherRow),
		classes:      make(map[string]*classRow),
		gradeGroups:  make(map[string]*gradeGroupRow),
		prizes:       make(map[string]*prizeRow),
		earnedPrizes: make(map[string]*earnedPrizeRow),
	}
}

func now() time.Time { return time.Now().UTC() }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// matches does a case-insensitive search of `search` in any of fields.
func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
