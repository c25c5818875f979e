package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
)

// CivilLayout is the wall-clock layout used in JSON output.
const CivilLayout = "2006-01-02T15:04:05"

// CivilTime is a wall-clock time serialized without zone.
type CivilTime struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (c CivilTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.Format(CivilLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CivilTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := time.ParseInLocation(CivilLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parsing civil time: %w", err)
	}
	c.Time = t
	return nil
}

// Record is one accepted workshop.
type Record struct {
	ID           string    `json:"id" validate:"required"`
	SourceID     string    `json:"source_id" validate:"required"`
	Title        string    `json:"title" validate:"required"`
	StartAt      CivilTime `json:"start_at"`
	EndAt        CivilTime `json:"end_at"`
	FullLocation string    `json:"full_location"`
	location.Address
	LanguageCode *string   `json:"language_code" validate:"omitempty,len=2,lowercase"`
	Online       bool      `json:"online"`
	Training     bool      `json:"training"`
	SoldOut      bool      `json:"sold_out"`
	Kids         bool      `json:"kids"`
	SourceLink   string    `json:"source_link" validate:"required,url"`
	TicketsLink  string    `json:"tickets_link" validate:"required,url"`
	Description  string    `json:"description"`
	ScrapedAt    time.Time `json:"scrape_date,omitempty"`
}

// ComposeID builds a record id.
func ComposeID(sourceID, eventID string) string {
	return sourceID + "-" + eventID
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules: the range is
// not empty, location is either all empty (online) or complete, and
// trainings are never flagged for kids.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("validating record %s: %w", r.ID, err)
	}
	if !r.EndAt.After(r.StartAt.Time) {
		return fmt.Errorf("validating record %s: end %s not after start %s", r.ID, r.EndAt.Format(CivilLayout), r.StartAt.Format(CivilLayout))
	}
	if r.Online {
		if r.Address != (location.Address{}) || r.FullLocation != "" {
			return fmt.Errorf("validating record %s: online event with a location", r.ID)
		}
	} else if !r.Address.Complete() {
		return fmt.Errorf("validating record %s: incomplete location", r.ID)
	}
	if r.Training && r.Kids {
		return errors.New("validating record " + r.ID + ": training flagged for kids")
	}
	return nil
}

// Duration returns EndAt - StartAt.
func (r *Record) Duration() time.Duration {
	return r.EndAt.Sub(r.StartAt.Time)
}
