package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	invoicetable "github.com/Muhammad-Talha4k/invoice-table-extraction"
	"github.com/Muhammad-Talha4k/invoice-table-extraction/store"
)

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func readInvoice(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", "invoice.csv"))
	require.NoError(t, err)
	return data
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestHealthz(t *testing.T) {
	h := New(nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExtractJSON(t *testing.T) {
	h := New(nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract", "invoice.csv", readInvoice(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp extractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Empty(t, resp.ID)
	require.Equal(t, "invoice.csv", resp.Source)
	require.Equal(t, []string{"Item", "Qty pcs", "CTNS", "Price USD", "Package Type", "Reference Number"}, resp.Table.Columns)
	require.Len(t, resp.Table.Rows, 2)
	require.Equal(t, "Shirt", *resp.Table.Rows[0][0])
	require.Equal(t, "CTN", resp.PackageType)
	require.Equal(t, "AB123456789", resp.ReferenceNumber)
	require.True(t, resp.TwoRowHeader)
	require.Equal(t, 2, resp.TableStart)

	require.Len(t, resp.Remainder.Rows, 3)
	require.Nil(t, resp.Remainder.Rows[0][1])

	require.Len(t, resp.Entries, 6+2*6)
	require.Equal(t, resp.Table, resp.RoundTrip)
}

func TestExtractMarkdown(t *testing.T) {
	h := New(nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract?format=markdown", "invoice.csv", readInvoice(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")

	body := rec.Body.String()
	require.Contains(t, body, "Extracted Table")
	require.Contains(t, body, "Remaining Data")
	require.Contains(t, body, "Shirt")
}

func TestExtractThresholdOverride(t *testing.T) {
	h := New(nil).Handler()

	// Every row has at least one present cell, so a tiny threshold makes
	// the first row the header.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract?min_non_nan_pct=0.2", "invoice.csv", readInvoice(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp extractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.TableStart)
	require.Empty(t, resp.Remainder.Rows)
}

func TestExtractRejectsBadInput(t *testing.T) {
	h := New(nil).Handler()

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "bad threshold",
			req:    func() *http.Request { return uploadRequest(t, "/extract?min_non_nan_pct=2", "a.csv", []byte("A\n1\n")) },
			status: http.StatusBadRequest,
		},
		{
			name:   "non numeric threshold",
			req:    func() *http.Request { return uploadRequest(t, "/extract?min_non_nan_pct=abc", "a.csv", []byte("A\n1\n")) },
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("A\n1\n"))
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "unsupported extension",
			req:    func() *http.Request { return uploadRequest(t, "/extract", "invoice.pdf", []byte("%PDF")) },
			status: http.StatusUnsupportedMediaType,
		},
		{
			name:   "ragged csv",
			req:    func() *http.Request { return uploadRequest(t, "/extract", "bad.csv", []byte("A,B\n1,2,3\n")) },
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "empty csv",
			req:    func() *http.Request { return uploadRequest(t, "/extract", "empty.csv", nil) },
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req())
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestExtractUploadTooLarge(t *testing.T) {
	h := New(nil, WithMaxUploadBytes(64)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract", "big.csv", bytes.Repeat([]byte("a,b\n"), 100)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecode(t *testing.T) {
	h := New(nil).Handler()

	body := `[
		{"column": 0, "column name": "Qty"},
		{"column": 1, "column name": "Desc"},
		{"row": 0, "column": 0, "text": "3"},
		{"row": 0, "column": 1, "text": null}
	]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"columns":["Qty","Desc"],"rows":[["3",null]]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(`[{"row": 0, "column": 0, "text": "x"}]`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "column 0")
}

func TestDecodeRejectsSparseRowIndex(t *testing.T) {
	h := New(nil).Handler()

	body := `[
		{"column": 0, "column name": "Qty"},
		{"row": 9223372036854775807, "column": 0, "text": "3"}
	]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "row 0 is missing")
}

func TestExtractSourceTooLarge(t *testing.T) {
	cfg := invoicetable.DefaultConfig()
	cfg.Loader.MaxBytes = 16
	extractor, err := invoicetable.NewExtractorWithConfig(cfg)
	require.NoError(t, err)
	h := New(extractor).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract", "invoice.csv", readInvoice(t)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestExtractionsWithoutStore(t *testing.T) {
	h := New(nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractionsLifecycle(t *testing.T) {
	h := New(invoicetable.NewExtractor(), WithStore(newTestStore(t))).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/extract", "invoice.csv", readInvoice(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created extractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, created.ID, rec.Header().Get("X-Extraction-Id"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)
	require.Equal(t, "AB123456789", list[0].ReferenceNumber)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched extractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, created.Table, fetched.Table)
	require.Equal(t, created.Remainder, fetched.Remainder)
	require.Equal(t, "CTN", fetched.PackageType)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/extractions/"+created.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions/"+created.ID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extractions?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	h := New(nil, WithAllowedOrigins("http://localhost:5173")).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
