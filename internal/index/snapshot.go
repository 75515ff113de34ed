package index

import (
	"strings"
	"time"

	"github.com/sha1n/dupefinder/internal/canonical"
	"github.com/sha1n/dupefinder/internal/domain"
)

// Bucket is the ordered set of record identifiers sharing one key under one
// criterion. Order is the order in which records were scanned.
type Bucket []string

// Snapshot is the fully built set of per-criterion indices plus the
// coordinate table. It is built once per run and then only read.
type Snapshot struct {
	// Name maps a canonical business name to its bucket.
	Name map[string]Bucket
	// Phone maps a phone number, verbatim, to its bucket.
	Phone map[string]Bucket
	// TaxID maps a tax identifier, verbatim, to its bucket.
	TaxID map[string]Bucket
	// Address maps a canonical address to its bucket.
	Address map[string]Bucket
	// Coordinates holds the position of every geocoded, indexed record.
	Coordinates map[string]domain.Coordinates

	BuiltAt time.Time
	Records int
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.ensureMaps()
	return s
}

// ensureMaps replaces nil maps with empty ones. Gob drops empty maps, so a
// decoded snapshot may come back with nil fields.
func (s *Snapshot) ensureMaps() {
	if s.Name == nil {
		s.Name = make(map[string]Bucket)
	}
	if s.Phone == nil {
		s.Phone = make(map[string]Bucket)
	}
	if s.TaxID == nil {
		s.TaxID = make(map[string]Bucket)
	}
	if s.Address == nil {
		s.Address = make(map[string]Bucket)
	}
	if s.Coordinates == nil {
		s.Coordinates = make(map[string]domain.Coordinates)
	}
}

// Add indexes a record. Records without an identifier or an address are
// not indexed and Add returns false. A record without coordinates is kept out of the name index
// and the coordinate table, since the name criterion needs a distance.
// The caller guarantees that a given identifier is added at most once.
func (s *Snapshot) Add(r domain.Record) bool {
	if r.ID == "" || r.Address.IsEmpty() {
		return false
	}

	if r.GPS != nil {
		add(s.Name, canonical.Canonicalize(r.Name), r.ID)
		s.Coordinates[r.ID] = *r.GPS
	}
	add(s.Address, canonical.AddressKey(r.Address), r.ID)
	add(s.TaxID, verbatim(r.TaxID), r.ID)
	add(s.Phone, verbatim(r.PhoneNumber), r.ID)

	s.Records++
	return true
}

// Coordinate returns the coordinates of a record, or nil when the record
// has none.
func (s *Snapshot) Coordinate(id string) *domain.Coordinates {
	c, ok := s.Coordinates[id]
	if !ok {
		return nil
	}
	return &c
}

// BucketCounts returns the number of buckets per criterion.
func (s *Snapshot) BucketCounts() map[string]int {
	return map[string]int{
		"name":    len(s.Name),
		"phone":   len(s.Phone),
		"tax_id":  len(s.TaxID),
		"address": len(s.Address),
	}
}

func add(m map[string]Bucket, key, id string) {
	if key == "" {
		return
	}
	m[key] = append(m[key], id)
}

// verbatim returns v unchanged, or "" when v is blank.
func verbatim(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}
