package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core/realtime"
	"github.com/fitprize/fitprize/core/user"
)

// Rooms returns the real-time rooms a caller joins when connecting.
// Teachers join the room of every class they are linked to and their school room,
// school admins join their school room and super admins join none.
func (svc *Service) Rooms(ctx context.Context, caller user.Caller) ([]string, error) {
	switch {
	case caller.IsTeacher():
		ids, err := svc.repo.TeacherClassIDs(ctx, caller.ID)
		if err != nil {
			return nil, errors.Wrap(err, "loading teacher classes")
		}
		rooms := make([]string, 0, len(ids)+1)
		for _, id := range ids {
			rooms = append(rooms, realtime.ClassRoom(id))
		}
		if caller.SchoolID != "" {
			rooms = append(rooms, realtime.SchoolRoom(caller.SchoolID))
		}
		return rooms, nil
	case caller.IsSchoolAdmin():
		if caller.SchoolID == "" {
			return []string{}, nil
		}
		return []string{realtime.SchoolRoom(caller.SchoolID)}, nil
	}
	return []string{}, nil
}
