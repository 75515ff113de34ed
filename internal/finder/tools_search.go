package finder

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/dupefinder/internal/canonical"
	"github.com/sha1n/dupefinder/internal/domain"
)

// SearchRecordsArgument defines search_records parameters.
type SearchRecordsArgument struct {
	Query   string `json:"query" jsonschema_description:"Free text matched against name, street and city, or an exact id, phone number, tax id or postal code"`
	City    string `json:"city,omitempty" jsonschema_description:"Filter by city (accents and case are ignored)"`
	ZipCode string `json:"zip_code,omitempty" jsonschema_description:"Filter by postal code"`
}

// SearchRecordsHandler handles the search_records MCP tool.
type SearchRecordsHandler struct {
	service *Service
}

// NewSearchRecordsHandler creates a new search_records handler.
func NewSearchRecordsHandler(service *Service) *SearchRecordsHandler {
	return &SearchRecordsHandler{service: service}
}

// Handle executes the search and returns formatted results.
func (h *SearchRecordsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchRecordsArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	idx, err := h.service.SearchIndex(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to access search index: %s", err)), nil, nil
	}

	searchReq := bleve.NewSearchRequest(h.buildQuery(args))
	searchReq.Size = h.service.Settings().Search.MaxResults
	searchReq.Fields = []string{
		domain.RecordFieldName,
		domain.RecordFieldStreet,
		domain.RecordFieldCity,
		domain.RecordFieldZipCode,
		domain.RecordFieldPhoneNumber,
		domain.RecordFieldTaxID,
	}

	results, err := idx.SearchInContext(ctx, searchReq)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return h.formatResults(results, args.Query), nil, nil
}

// buildQuery constructs a Bleve query from search arguments.
func (h *SearchRecordsHandler) buildQuery(args SearchRecordsArgument) query.Query {
	raw := strings.TrimSpace(args.Query)

	// Free text over the folded name, street and city
	textQuery := bleve.NewMatchQuery(canonical.Fold(raw))
	textQuery.SetField(domain.RecordFieldText)
	textQuery.SetOperator(query.MatchQueryOperatorAnd)

	should := []query.Query{textQuery}
	for _, field := range []string{domain.RecordFieldID, domain.RecordFieldPhoneNumber, domain.RecordFieldTaxID, domain.RecordFieldZipCode} {
		tq := bleve.NewTermQuery(raw)
		tq.SetField(field)
		tq.SetBoost(5.0)
		should = append(should, tq)
	}

	searchQuery := bleve.NewDisjunctionQuery(should...)

	// If no filters, return search query directly
	if args.City == "" && args.ZipCode == "" {
		return searchQuery
	}

	must := []query.Query{searchQuery}

	if args.City != "" {
		cityQuery := bleve.NewTermQuery(canonical.Fold(args.City))
		cityQuery.SetField(domain.RecordFieldCityKey)
		must = append(must, cityQuery)
	}

	if args.ZipCode != "" {
		zipQuery := bleve.NewTermQuery(strings.TrimSpace(args.ZipCode))
		zipQuery.SetField(domain.RecordFieldZipCode)
		must = append(must, zipQuery)
	}

	return bleve.NewConjunctionQuery(must...)
}

// formatResults formats Bleve search results for MCP response.
func (h *SearchRecordsHandler) formatResults(results *bleve.SearchResult, queryStr string) *mcp.CallToolResult {
	if results.Total == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("No records found for query: %s", queryStr)},
			},
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d records for '%s':\n\n", results.Total, queryStr))

	for i, hit := range results.Hits {
		field := func(name string) string {
			if val, ok := hit.Fields[name].(string); ok {
				return val
			}
			return ""
		}

		sb.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, field(domain.RecordFieldName), hit.ID))

		address := strings.Join(nonEmpty(field(domain.RecordFieldStreet), field(domain.RecordFieldZipCode), field(domain.RecordFieldCity)), ", ")
		if address != "" {
			sb.WriteString("   address: " + address + "\n")
		}
		if phone := field(domain.RecordFieldPhoneNumber); phone != "" {
			sb.WriteString("   phone: " + phone + "\n")
		}
		if taxID := field(domain.RecordFieldTaxID); taxID != "" {
			sb.WriteString("   tax id: " + taxID + "\n")
		}
	}

	if results.Total > uint64(len(results.Hits)) {
		sb.WriteString(fmt.Sprintf("... and %d more results\n", results.Total-uint64(len(results.Hits))))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchRecordsHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_records",
		Description: "Search business records by name, address, phone number, tax id or postal code",
	}
}

// RegisterSearchRecordsTool registers the search_records tool with an MCP server.
func RegisterSearchRecordsTool(server *mcp.Server, service *Service) {
	handler := NewSearchRecordsHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
