// Package detect finds duplicate candidates in an index snapshot.
//
// Four independent passes run in a fixed order: tax id, phone number,
// name and address. Each pass walks the buckets of one criterion and
// considers every unordered pair of records in a bucket exactly once, so
// the cost is quadratic in bucket size but linear in the number of
// buckets. Only the name pass is gated on distance.
package detect

import (
	"fmt"
	"math"
	"slices"

	"github.com/sha1n/dupefinder/internal/domain"
	"github.com/sha1n/dupefinder/internal/geo"
	"github.com/sha1n/dupefinder/internal/index"
)

// DefaultNameDistance is the maximum distance, in meters, at which two
// records sharing a canonical name are still reported.
const DefaultNameDistance = 1000.0

// Reasons attached to candidates.
const (
	ReasonTaxID   = "same tax id"
	ReasonPhone   = "same phone number"
	ReasonAddress = "same address"
)

// NameReason formats the name-match reason for the given distance.
func NameReason(meters float64) string {
	return fmt.Sprintf("same name (distance: %d m)", int64(math.Round(meters)))
}

// Option configures a Detector.
type Option func(*Detector)

// WithNameDistance sets the name-match distance threshold in meters.
// Pairs are reported when their distance is strictly below it.
func WithNameDistance(meters float64) Option {
	return func(d *Detector) {
		d.nameDistance = meters
	}
}

// Detector applies one matching rule per criterion.
type Detector struct {
	nameDistance float64
}

// New creates a detector.
func New(opts ...Option) *Detector {
	d := &Detector{nameDistance: DefaultNameDistance}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NameDistance returns the configured name-match threshold.
func (d *Detector) NameDistance() float64 {
	return d.nameDistance
}

// Detect runs every pass over the snapshot and returns the candidates.
// The snapshot is only read.
func (d *Detector) Detect(s *index.Snapshot) (*Result, error) {
	res := newResult()

	eachPair(s.TaxID, func(a, b string) bool {
		res.add(a, b, ReasonTaxID)
		return true
	})
	eachPair(s.Phone, func(a, b string) bool {
		res.add(a, b, ReasonPhone)
		return true
	})

	var nameErr error
	eachPair(s.Name, func(a, b string) bool {
		meters, err := geo.Distance(s.Coordinate(a), s.Coordinate(b))
		if err != nil {
			nameErr = fmt.Errorf("name pass: pair (%s, %s): %w", a, b, err)
			return false
		}
		if meters < d.nameDistance {
			res.add(a, b, NameReason(meters))
		}
		return true
	})
	if nameErr != nil {
		return nil, nameErr
	}

	eachPair(s.Address, func(a, b string) bool {
		res.add(a, b, ReasonAddress)
		return true
	})

	return res, nil
}

// eachPair calls fn once for every unordered pair of distinct identifiers
// sharing a bucket, with a < b. Buckets are visited in key order so the
// output is reproducible; buckets of one member are skipped. Enumeration
// stops as soon as fn returns false.
func eachPair(buckets map[string]index.Bucket, fn func(a, b string) bool) {
	keys := make([]string, 0, len(buckets))
	for k, ids := range buckets {
		if len(ids) > 1 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		ids := buckets[k]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if ids[i] == ids[j] {
					continue
				}
				pair := domain.NewPairKey(ids[i], ids[j])
				if !fn(pair.ReferenceID, pair.CandidateID) {
					return
				}
			}
		}
	}
}
