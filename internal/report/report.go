// Package report renders duplicate candidates for the console and writes
// the JSON export consumed downstream.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/sha1n/dupefinder/internal/domain"
)

// DefaultExportPath is the export file name used when none is configured.
const DefaultExportPath = "duplicates.json"

// ReasonSeparator joins the reasons of a candidate in the console table.
const ReasonSeparator = " + "

// Summary returns the count line printed around the table.
func Summary(n int) string {
	return fmt.Sprintf("Found %d duplicate(s):", n)
}

// WriteTable writes the count line, a Reference/Candidate/Reason table and
// the count line again.
func WriteTable(w io.Writer, candidates []domain.Candidate) error {
	if _, err := fmt.Fprintln(w, Summary(len(candidates))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][3]string{
		{"Reference", "Candidate", "Reason"},
		{"---------", "---------", "------"},
	}
	for _, c := range candidates {
		rows = append(rows, [3]string{c.ReferenceID, c.CandidateID, strings.Join(c.Reasons, ReasonSeparator)})
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", row[0], row[1], row[2]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, Summary(len(candidates)))
	return err
}

// MarshalExport encodes candidates in the export format: a pretty-printed
// JSON array of {referenceId, candidateId, reasons}.
func MarshalExport(candidates []domain.Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport writes the export file, replacing any previous export. The
// file is written next to its destination and renamed into place.
func WriteExport(path string, candidates []domain.Candidate) error {
	data, err := MarshalExport(candidates)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write export temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename export file: %w", err)
	}
	return nil
}
