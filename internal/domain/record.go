package domain

import (
	"encoding/json"
	"strings"
)

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Address is the postal address of a business record.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// IsEmpty reports whether every address field is blank.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.ZipCode) == "" &&
		strings.TrimSpace(a.Country) == ""
}

// Record is a business as read from the record store.
// Only the fields needed for duplicate detection are projected.
type Record struct {
	// ID is the stable, unique identifier of the record in the store.
	// Identifiers are compared as strings when ordering a pair.
	ID string `json:"id"`

	// Name is the free-text business name.
	Name string `json:"name"`

	// PhoneNumber is matched verbatim. Blank means absent.
	PhoneNumber string `json:"phoneNumber,omitempty"`

	// TaxID is the business tax identifier (SIRET), matched verbatim.
	// Blank means absent.
	TaxID string `json:"siret,omitempty"`

	Address Address `json:"address"`

	// GPS is nil when the record has not been geocoded.
	GPS *Coordinates `json:"gps,omitempty"`
}

// UnmarshalJSON decodes a record, keeping GPS only when both lat and lng
// are present. A position with a single coordinate is treated as absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		GPS *struct {
			Latitude  *float64 `json:"lat"`
			Longitude *float64 `json:"lng"`
		} `json:"gps"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = Record(aux.plain)
	r.GPS = nil
	if aux.GPS != nil && aux.GPS.Latitude != nil && aux.GPS.Longitude != nil {
		r.GPS = &Coordinates{Latitude: *aux.GPS.Latitude, Longitude: *aux.GPS.Longitude}
	}
	return nil
}
