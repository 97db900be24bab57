// Package realtime defines the events pushed to connected clients and the rooms they are routed to.
package realtime

import "encoding/json"

// Event names
const (
	EventClassMinutesUpdated  = "class:minutes_updated"
	EventSchoolPrizeEarned    = "school:prize_earned"
	EventSchoolPrizeDelivered = "school:prize_delivered"
	EventSchoolPrizeCreated   = "school:prize_created"
	EventSchoolPrizeUpdated   = "school:prize_updated"
)

// ClassRoom returns the room key of a class.
func ClassRoom(classID string) string { return "class:" + classID }

// SchoolRoom returns the room key of a school.
func SchoolRoom(schoolID string) string { return "school:" + schoolID }

// Event is a named payload as written on the wire.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"data"`
}

// Envelope is an Event addressed to a room. It is the unit exchanged between server instances.
type Envelope struct {
	Room    string          `json:"room"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data"`
}

type (
	ClassMinutesUpdated struct {
		ClassID            string  `json:"classId"`
		SchoolID           string  `json:"schoolId"`
		FitnessMinutes     int     `json:"fitnessMinutes"`
		EarnedPrizesCount  int     `json:"earnedPrizesCount"`
		NewEarnedPrizes    int     `json:"newEarnedPrizes"`
		PrimaryTeacherName *string `json:"primaryTeacherName"`
	}

	SchoolPrizeEarned struct {
		SchoolID          string `json:"schoolId"`
		ClassID           string `json:"classId"`
		ClassName         string `json:"className"`
		EarnedPrizesCount int    `json:"earnedPrizesCount"`
		NewEarnedPrizes   int    `json:"newEarnedPrizes"`
	}

	SchoolPrizeDelivered struct {
		SchoolID      string `json:"schoolId"`
		EarnedPrizeID string `json:"earnedPrizeId"`
		Delivered     bool   `json:"delivered"`
	}

	// SchoolPrizeChanged is the payload of both prize created and prize updated events.
	SchoolPrizeChanged struct {
		SchoolID        string `json:"schoolId"`
		PrizeID         string `json:"prizeId"`
		Name            string `json:"name"`
		GradeGroupID    string `json:"gradeGroupId"`
		GradeGroupName  string `json:"gradeGroupName,omitempty"`
		MinutesRequired int    `json:"minutesRequired"`
		Icon            string `json:"icon"`
	}
)
