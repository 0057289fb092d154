package model

import "time"

type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "pending"
	ScheduleSent    ScheduleStatus = "sent"
	ScheduleFailed  ScheduleStatus = "failed"
)

// ScheduledMessage is a daily verse delivery. ScheduleTime is a time of
// day ("HH:MM"), not a full timestamp: the schedule fires once per
// calendar day after that time is reached. LastFiredDate ("YYYY-MM-DD")
// records the last day it fired, so a sent schedule re-arms the next day.
// failed is terminal until the user deletes and recreates the schedule.
type ScheduledMessage struct {
	ID                int64
	Book              string
	Chapter           int
	StartVerse        int
	EndVerse          int
	ScheduleTime      string
	IncludeReflection bool
	RecipientNumber   string
	Status            ScheduleStatus
	LastFiredDate     *string
	LastError         *string
	CreatedAt         time.Time
}
