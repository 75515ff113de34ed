package domain

// RecordDocument is the shape of a record in the Bleve search index used
// by the search_records tool.
type RecordDocument struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Street      string `json:"street"`
	City        string `json:"city"`
	ZipCode     string `json:"zip_code"`
	PhoneNumber string `json:"phone_number"`
	TaxID       string `json:"tax_id"`

	// Text is the folded form of name, street and city, analyzed for
	// accent-insensitive matching. Not stored.
	Text string `json:"text"`

	// CityKey is the folded city, matched as a single term.
	CityKey string `json:"city_key"`
}

// NewRecordDocument converts a store record into its indexed form. fold
// maps free text to its accent-free lower-case form.
func NewRecordDocument(r Record, fold func(string) string) RecordDocument {
	return RecordDocument{
		ID:          r.ID,
		Name:        r.Name,
		Street:      r.Address.Street,
		City:        r.Address.City,
		ZipCode:     r.Address.ZipCode,
		PhoneNumber: r.PhoneNumber,
		TaxID:       r.TaxID,
		Text:        fold(r.Name + " " + r.Address.Street + " " + r.Address.City),
		CityKey:     fold(r.Address.City),
	}
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	RecordFieldID          = "id"
	RecordFieldName        = "name"
	RecordFieldStreet      = "street"
	RecordFieldCity        = "city"
	RecordFieldZipCode     = "zip_code"
	RecordFieldPhoneNumber = "phone_number"
	RecordFieldTaxID       = "tax_id"
	RecordFieldText        = "text"
	RecordFieldCityKey     = "city_key"
)
