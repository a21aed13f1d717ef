package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dividi/internal/core"
	ports "dividi/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing spreadsheet id", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet", CredentialsFile: "/nonexistent/creds.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestAppendRow(t *testing.T) {
	var gotPath string
	var gotQuery string
	var gotBody gsheet.ValueRange

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Ledger!A7:I7","updatedRows":1}}`)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c := NewWithService(svc, "sheet-1", "")
	ref, err := c.AppendRow(context.Background(), ports.LedgerRow{
		Timestamp:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Event:        "expense.created",
		ExpenseID:    "e1",
		Title:        "Dinner",
		Payer:        "Alice",
		Amount:       core.NewMoney(30000),
		Participants: []string{"Alice", "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A7:I7", ref)

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")
	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, "300.00", gotBody.Values[0][5])
	assert.Equal(t, "Alice, Bob", gotBody.Values[0][6])
}

func TestAppendRowValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	_, err := c.AppendRow(context.Background(), ports.LedgerRow{})
	assert.ErrorIs(t, err, ports.ErrInvalidRow)

	_, err = c.AppendRow(context.Background(), ports.LedgerRow{
		Timestamp: time.Now(), Event: "expense.created", ExpenseID: "e1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}
