package export_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/fintrack-ledger-service/internal/export"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/models"
	"github.com/sheikh-saqib/fintrack-ledger-service/internal/storage/memory"
)

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateContact(ctx, models.Contact{
		ID: "c1", Email: "jose@example.com", Name: "José Pérez",
		Balance: decimal.RequireFromString("70"), CreatedAt: base, UpdatedAt: base,
	}))
	require.NoError(t, store.CreateContact(ctx, models.Contact{
		ID: "c2", Email: "ana@example.com", Name: "Ana",
		Balance: decimal.RequireFromString("25.5"), CreatedAt: base, UpdatedAt: base,
	}))

	require.NoError(t, store.SaveOperation(ctx, models.Operation{
		ID: "op1", ContactID: "c1", Amount: decimal.RequireFromString("100"),
		Type: models.OperationCredit, Description: "salary, June", CreatedAt: base,
	}))
	require.NoError(t, store.SaveOperation(ctx, models.Operation{
		ID: "op2", ContactID: "c1", Amount: decimal.RequireFromString("-30"),
		Type: models.OperationDebit, Description: "groceries", CreatedAt: time.Date(2025, 6, 11, 23, 30, 0, 0, time.UTC),
	}))
	require.NoError(t, store.SaveOperation(ctx, models.Operation{
		ID: "op3", ContactID: "c2", Amount: decimal.RequireFromString("25.5"),
		Type: models.OperationCredit, CreatedAt: base.AddDate(0, 0, 2),
	}))
	return store
}

func TestOperationsCSV_AllContacts(t *testing.T) {
	exporter := export.NewExporter(seedStore(t))

	report, err := exporter.OperationsCSV(context.Background(), export.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "AllOperationsHistory.csv", report.Filename)

	lines := strings.Split(strings.TrimRight(string(report.Content), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Contact Name,Contact Email,Type,Amount,Description", lines[0])

	// Newest first; description with a comma is quoted; amounts carry two
	// decimals and keep their sign.
	assert.Equal(t, "2025-06-12,Ana,ana@example.com,Credit,25.50,", lines[1])
	assert.Equal(t, "2025-06-11,José Pérez,jose@example.com,Debit,-30.00,groceries", lines[2])
	assert.Equal(t, `2025-06-10,José Pérez,jose@example.com,Credit,100.00,"salary, June"`, lines[3])
}

func TestOperationsCSV_SingleContactFilename(t *testing.T) {
	exporter := export.NewExporter(seedStore(t))

	report, err := exporter.OperationsCSV(context.Background(), export.Filter{ContactID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "JosePerezOperationsHistory.csv", report.Filename)

	lines := strings.Split(strings.TrimRight(string(report.Content), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines[1:] {
		assert.Contains(t, line, "jose@example.com")
	}
}

func TestOperationsCSV_UnknownContactFilename(t *testing.T) {
	exporter := export.NewExporter(seedStore(t))

	report, err := exporter.OperationsCSV(context.Background(), export.Filter{ContactID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, "ContactOperationsHistory.csv", report.Filename)

	lines := strings.Split(strings.TrimRight(string(report.Content), "\n"), "\n")
	assert.Len(t, lines, 1) // header only
}

func TestOperationsCSV_DateBounds(t *testing.T) {
	exporter := export.NewExporter(seedStore(t))

	from := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	// DateTo is widened to the end of its day, so the 11th at 23:30 falls in.
	report, err := exporter.OperationsCSV(context.Background(), export.Filter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(report.Content), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "groceries")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"diacritics stripped", "José Pérez", "JosePerez"},
		{"punctuation removed", "O'Brien & Co.", "ObrienCo"},
		{"words capitalized", "ana maría lópez", "AnaMariaLopez"},
		{"digits kept", "Agent 007", "Agent007"},
		{"only symbols", "@#$%", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, export.SanitizeName(tt.in))
		})
	}
}
