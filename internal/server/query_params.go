package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	dateOnlyLayout   = "2006-01-02"
	isoNoZoneLayout  = "2006-01-02T15:04:05"
	isoNoZoneLayoutZ = "2006-01-02T15:04:05.999999999"
)

func parseSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("invalid_snowflake_id")
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid_snowflake_id")
	}
	return parsed, nil
}

// parseOptionalTime accepts RFC3339, a zone-less ISO timestamp (UTC) or a
// bare date. A bare date is widened to the end of the day when endOfDay.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	for _, layout := range []string{isoNoZoneLayout, isoNoZoneLayoutZ} {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return &parsed, nil
		}
	}
	if parsed, err := time.ParseInLocation(dateOnlyLayout, trimmed, time.UTC); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// parseWindowQuery reads start_date/end_date, falling back to start/end.
func parseWindowQuery(c *gin.Context) (*time.Time, *time.Time, error) {
	rawStart := firstQuery(c, "start_date", "start")
	rawEnd := firstQuery(c, "end_date", "end")

	start, err := parseOptionalTime(rawStart, false)
	if err != nil {
		return nil, nil, newValidationError("start_date", "invalid_start_date", "invalid start date")
	}
	end, err := parseOptionalTime(rawEnd, true)
	if err != nil {
		return nil, nil, newValidationError("end_date", "invalid_end_date", "invalid end date")
	}
	return start, end, nil
}

func firstQuery(c *gin.Context, names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(c.Query(name)); value != "" {
			return value
		}
	}
	return ""
}
