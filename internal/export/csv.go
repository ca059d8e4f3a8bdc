package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
)

// Filter selects the operations to export. A zero ContactID means all
// contacts. DateTo is widened to the end of its day; UntilNow caps the range
// at the current instant instead.
type Filter struct {
	ContactID string
	DateFrom  *time.Time
	DateTo    *time.Time
	UntilNow  bool
}

// Report is a rendered export ready to be served as a download.
type Report struct {
	Filename string
	Content  []byte
}

// Exporter projects filtered operations into a delimited text report.
type Exporter struct {
	store interfaces.Store
}

func NewExporter(store interfaces.Store) *Exporter {
	return &Exporter{store: store}
}

var typeLabels = map[models.OperationType]string{
	models.OperationCredit: "Credit",
	models.OperationDebit:  "Debit",
}

// OperationsCSV renders the matching operations, newest first, one row per
// operation with the owning contact's name and email joined in. Quoting of
// delimiters, quotes and newlines follows CSV conventions.
func (e *Exporter) OperationsCSV(ctx context.Context, filter Filter) (*Report, error) {
	storeFilter := interfaces.OperationFilter{
		ContactID: filter.ContactID,
		From:      filter.DateFrom,
	}
	switch {
	case filter.UntilNow:
		now := time.Now().UTC()
		storeFilter.To = &now
	case filter.DateTo != nil:
		endOfDay := filter.DateTo.Truncate(24 * time.Hour).Add(24*time.Hour - time.Millisecond)
		storeFilter.To = &endOfDay
	}

	ops, err := e.store.FindOperations(ctx, storeFilter)
	if err != nil {
		return nil, err
	}

	contacts, err := e.store.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Date", "Contact Name", "Contact Email", "Type", "Amount", "Description"}); err != nil {
		return nil, err
	}
	for _, op := range ops {
		contact, ok := byID[op.ContactID]
		name, email := contact.Name, contact.Email
		if !ok {
			name, email = "Unknown", ""
		}
		record := []string{
			op.CreatedAt.Format(time.DateOnly),
			name,
			email,
			typeLabels[op.Type],
			op.Amount.StringFixed(2),
			op.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &Report{
		Filename: e.filename(ctx, filter),
		Content:  buf.Bytes(),
	}, nil
}

func (e *Exporter) filename(ctx context.Context, filter Filter) string {
	if filter.ContactID == "" {
		return "AllOperationsHistory.csv"
	}
	contact, err := e.store.ContactByID(ctx, filter.ContactID)
	if err != nil || contact == nil {
		return "ContactOperationsHistory.csv"
	}
	if clean := SanitizeName(contact.Name); clean != "" {
		return clean + "OperationsHistory.csv"
	}
	return "ContactOperationsHistory.csv"
}

// SanitizeName turns a display name into a filename fragment: diacritics
// stripped, non-alphanumerics removed, each word capitalized and joined.
// "José Pérez" becomes "JosePerez".
func SanitizeName(name string) string {
	// NFD decomposition followed by removal of the combining marks.
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, name)
	if err != nil {
		stripped = name
	}

	var cleaned strings.Builder
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			cleaned.WriteRune(r)
		}
	}

	var out strings.Builder
	for _, word := range strings.Fields(cleaned.String()) {
		out.WriteString(strings.ToUpper(word[:1]))
		out.WriteString(strings.ToLower(word[1:]))
	}
	return out.String()
}
