// Package patientreg is the per-facility patient registry. Encounters
// reference these rows; the central aggregate in domain/history is a
// separate store keyed by the same national ID.
package patientreg

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	NationalID    string    `db:"national_id" json:"national_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	DateOfBirth   time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender        string    `db:"gender" json:"gender"`
	BloodGroup    *string   `db:"blood_group" json:"blood_group,omitempty"`
	ContactNumber *string   `db:"contact_number" json:"contact_number,omitempty"`
	Address       *string   `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns whole years between the date of birth and now.
func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.DateOfBirth.Year()
	if now.YearDay() < p.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
