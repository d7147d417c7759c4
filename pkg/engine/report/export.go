package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
)

// ExportItem is one resource row in the CSV/JSON exports.
type ExportItem struct {
	ResourceID     string   `json:"resource_id"`
	Type           string   `json:"type"`
	DisplayName    string   `json:"display_name,omitempty"`
	Status         string   `json:"status"`
	MissingKeys    []string `json:"missing_keys,omitempty"`
	DisallowedKeys []string `json:"disallowed_keys,omitempty"`
	ForbiddenKeys  []string `json:"forbidden_keys,omitempty"`
	Actions        []string `json:"actions,omitempty"`
}

// Document is the JSON export.
type Document struct {
	Account     string                `json:"account"`
	GeneratedAt time.Time             `json:"generated_at"`
	DryRun      bool                  `json:"dry_run"`
	Mode        Mode                  `json:"mode"`
	Summary     Summary               `json:"summary"`
	Items       []ExportItem          `json:"items"`
	Outcomes    []remediation.Outcome `json:"outcomes"`
	Warnings    []Warning             `json:"warnings,omitempty"`
}

// WriteCSV writes one row per listed finding.
func WriteCSV(w io.Writer, r *ComplianceReport, mode Mode) error {
	cw := csv.NewWriter(w)

	header := []string{
		"ResourceID",
		"Type",
		"DisplayName",
		"Status",
		"MissingKeys",
		"DisallowedKeys",
		"ForbiddenKeys",
		"Actions",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, item := range Items(r, mode) {
		record := []string{
			item.ResourceID,
			item.Type,
			item.DisplayName,
			item.Status,
			strings.Join(item.MissingKeys, ";"),
			strings.Join(item.DisallowedKeys, ";"),
			strings.Join(item.ForbiddenKeys, ";"),
			strings.Join(item.Actions, ";"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the report as an indented JSON document.
func WriteJSON(w io.Writer, r *ComplianceReport, mode Mode) error {
	doc := Document{
		Account:     r.AccountIdentifier,
		GeneratedAt: r.GeneratedAt,
		DryRun:      r.DryRun,
		Mode:        mode,
		Summary:     r.Summary(),
		Items:       Items(r, mode),
		Outcomes:    r.Outcomes,
		Warnings:    r.Warnings,
	}
	if doc.Items == nil {
		doc.Items = []ExportItem{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Items flattens the listed findings and their outcomes into export rows.
func Items(r *ComplianceReport, mode Mode) []ExportItem {
	var items []ExportItem
	for _, f := range r.Audit(mode) {
		items = append(items, exportItem(r, f))
	}
	return items
}

func exportItem(r *ComplianceReport, f compliance.Finding) ExportItem {
	status := "COMPLIANT"
	if !f.Compliant() {
		status = "NON_COMPLIANT"
	}

	item := ExportItem{
		ResourceID:     f.Resource.ID,
		Type:           f.Resource.Kind.TypeName(),
		DisplayName:    f.Resource.DisplayName,
		Status:         status,
		MissingKeys:    f.MissingKeys,
		DisallowedKeys: f.DisallowedValueKeys,
	}
	for _, k := range f.ForbiddenKeys() {
		item.ForbiddenKeys = append(item.ForbiddenKeys, k+"="+f.ForbiddenKeysPresent[k])
	}
	for _, o := range r.OutcomesFor(f.Resource) {
		item.Actions = append(item.Actions, describe(o))
	}
	return item
}

func describe(o remediation.Outcome) string {
	m := o.Mutation
	action := "Delete " + m.Key
	if m.Action == remediation.ActionSet {
		action = fmt.Sprintf("Set %s=%s", m.Key, m.Value)
	}
	switch {
	case o.Status == remediation.StatusFailed:
		return fmt.Sprintf("%s:%s(%s)", action, o.Status, o.FailureReason)
	case o.Detail != "":
		return fmt.Sprintf("%s:%s(%s)", action, o.Status, o.Detail)
	}
	return fmt.Sprintf("%s:%s", action, o.Status)
}
