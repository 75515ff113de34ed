package finder

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/dupefinder/internal/canonical"
	"github.com/sha1n/dupefinder/internal/domain"
)

// MaxBatchSize is the maximum number of documents per index batch
const MaxBatchSize = 500

// CreateRecordMapping creates the Bleve index mapping for record documents.
func CreateRecordMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Text - folded name, street and city, analyzed for full-text search
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	docMapping.AddFieldMappingsAt(domain.RecordFieldText, textField)

	// Display fields - stored for retrieval only
	for _, name := range []string{domain.RecordFieldName, domain.RecordFieldStreet, domain.RecordFieldCity} {
		f := bleve.NewTextFieldMapping()
		f.Index = false
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	// Exact-match fields - keyword (not analyzed), stored
	for _, name := range []string{
		domain.RecordFieldID,
		domain.RecordFieldZipCode,
		domain.RecordFieldPhoneNumber,
		domain.RecordFieldTaxID,
		domain.RecordFieldCityKey,
	} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// BuildRecordIndex scans src into a new in-memory Bleve index and returns
// it along with the number of documents indexed. On failure the partial
// index is closed and nil is returned.
func BuildRecordIndex(ctx context.Context, src Source) (bleve.Index, int, error) {
	mem, err := bleve.NewMemOnly(CreateRecordMapping())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create search index: %w", err)
	}

	count, err := indexRecords(ctx, mem, src)
	if err != nil {
		_ = mem.Close()
		return nil, 0, err
	}
	return mem, count, nil
}

func indexRecords(ctx context.Context, idx bleve.Index, src Source) (int, error) {
	count := 0
	batch := idx.NewBatch()
	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("failed to index batch: %w", err)
		}
		batch.Reset()
		return nil
	}

	err := src.Scan(ctx, func(r domain.Record) error {
		if r.ID == "" {
			return nil
		}
		if err := batch.Index(r.ID, domain.NewRecordDocument(r, canonical.Fold)); err != nil {
			return fmt.Errorf("failed to index record %s: %w", r.ID, err)
		}
		count++
		if batch.Size() >= MaxBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record scan failed: %w", err)
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return count, nil
}

// SearchIndex returns the records search index, building it from the
// record store on first use.
func (s *Service) SearchIndex(ctx context.Context) (bleve.Index, error) {
	s.searchMu.Lock()
	defer s.searchMu.Unlock()

	if s.search != nil {
		return s.search, nil
	}

	s.logger.Info("Building records search index", "source", s.source.Describe())
	idx, count, err := BuildRecordIndex(ctx, s.source)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Records search index ready", "documents", count)

	s.search = idx
	return idx, nil
}
