package dashboard

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/visitor-insights/internal/visitors"
)

var validate = validator.New()

// FilterPatch overlays the non-nil fields onto the current filters.
type FilterPatch struct {
	ProjectName *string `json:"projectName,omitempty"`
	Location    *string `json:"location,omitempty"`
	Browser     *string `json:"browser,omitempty"`
	Device      *string `json:"device,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
	Page        *int    `json:"page,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
}

// Apply returns a new Filters value with the patch merged over f.
func (p FilterPatch) Apply(f visitors.Filters) visitors.Filters {
	if p.ProjectName != nil {
		f.ProjectName = *p.ProjectName
	}
	if p.Location != nil {
		f.Location = *p.Location
	}
	if p.Browser != nil {
		f.Browser = *p.Browser
	}
	if p.Device != nil {
		f.Device = *p.Device
	}
	if p.StartDate != nil {
		f.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		f.EndDate = *p.EndDate
	}
	if p.Page != nil {
		f.Page = *p.Page
	}
	if p.Limit != nil {
		f.Limit = *p.Limit
	}
	return f
}

// ValidateFilters checks the page, limit and date fields.
func ValidateFilters(f visitors.Filters) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}
	return nil
}

// DefaultFilters returns the filters a fresh dashboard starts with.
func DefaultFilters(now time.Time, loc *time.Location, limit int) visitors.Filters {
	if limit <= 0 {
		limit = 10
	}
	start, end := DefaultDates(now, loc)
	return visitors.Filters{
		ProjectName: "",
		Location:    visitors.AllOption,
		Browser:     visitors.AllOption,
		Device:      visitors.AllOption,
		StartDate:   start,
		EndDate:     end,
		Page:        1,
		Limit:       limit,
	}
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }
