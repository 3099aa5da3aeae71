package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/acmehealth/claimsight/internal/reporting/query"
	"github.com/acmehealth/claimsight/pkg/db/pagination"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalTime(c *gin.Context, name string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC3339 or YYYY-MM-DD", ErrInvalidRequest, name)
	}
	ts = ts.UTC()
	if endOfDay {
		ts = ts.Add(24*time.Hour - time.Nanosecond)
	}
	return ts, nil
}

func parseOptionalBool(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidRequest, name)
	}
	return v, nil
}

func parseOptionalInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidRequest, name)
	}
	return v, nil
}

func parseReportFilters(c *gin.Context) (query.Filters, error) {
	var f query.Filters

	from, err := parseOptionalTime(c, "from", false)
	if err != nil {
		return f, err
	}
	to, err := parseOptionalTime(c, "to", true)
	if err != nil {
		return f, err
	}

	page, err := parseOptionalInt(c, "page")
	if err != nil {
		return f, err
	}
	pageSize, err := parseOptionalInt(c, "page_size")
	if err != nil {
		return f, err
	}
	sortDesc, err := parseOptionalBool(c, "sort_desc")
	if err != nil {
		return f, err
	}

	f = query.Filters{
		From:       from,
		To:         to,
		FacilityID: strings.TrimSpace(c.Query("facility_id")),
		PayerID:    strings.TrimSpace(c.Query("payer_id")),
		Clinician:  strings.TrimSpace(c.Query("clinician")),
		Mode:       query.Mode(strings.TrimSpace(c.Query("mode"))),
		SortBy:     strings.TrimSpace(c.Query("sort_by")),
		SortDesc:   sortDesc,
		Page:       pagination.Page{Number: page, Size: pageSize},
	}
	return f, nil
}
