package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormline/provision/internal/config"
	"github.com/stormline/provision/internal/provisioning"
)

const sampleCSV = "first_name,last_name,email,role,temp_password\n" +
	"Ada,Lovelace,ada@example.com,ADMIN,Str0ngPass!234\n" +
	"Grace,Hopper,grace@example.com,CONTRACTOR,Str0ngPass!234\n"

// memAdapter is an in-memory Adapter good enough to drive the HTTP handler.
type memAdapter struct {
	users     map[string]provisioning.AuthUser
	mutations int
}

func newMemAdapter() *memAdapter {
	return &memAdapter{users: make(map[string]provisioning.AuthUser)}
}

func (m *memAdapter) ListSuperAdmins(ctx context.Context) ([]provisioning.ExistingSuperAdmin, error) {
	return nil, nil
}

func (m *memAdapter) FindAuthUserByEmail(ctx context.Context, email string) (*provisioning.AuthUser, error) {
	if u, ok := m.users[email]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *memAdapter) CreateAuthUser(ctx context.Context, params provisioning.AuthUserParams) (provisioning.AuthUser, error) {
	m.mutations++
	u := provisioning.AuthUser{ID: "id-" + params.Email, Email: params.Email}
	m.users[params.Email] = u
	return u, nil
}

func (m *memAdapter) UpdateAuthUser(ctx context.Context, id string, params provisioning.AuthUserParams) error {
	m.mutations++
	return nil
}

func (m *memAdapter) UpsertProfile(ctx context.Context, params provisioning.ProfileParams) error {
	m.mutations++
	return nil
}

func (m *memAdapter) UpsertContractor(ctx context.Context, params provisioning.ContractorParams) error {
	m.mutations++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, adapter provisioning.Adapter) *Server {
	t.Helper()
	if adapter == nil {
		adapter = newMemAdapter()
	}
	return NewServer(cfg, func() provisioning.Adapter { return adapter })
}

func multipartBody(t *testing.T, csv string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "users.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleProvision_DryRunReport(t *testing.T) {
	adapter := newMemAdapter()
	srv := newTestServer(t, testConfig(), adapter)

	body, contentType := multipartBody(t, sampleCSV, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report provisioning.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.RowsParsed)
	assert.Equal(t, 2, report.RowsValid)
	assert.Equal(t, 2, report.CreatedUsers)
	assert.Zero(t, adapter.mutations, "dry run must not reach the stores")
}

func TestHandleProvision_ApplyDisabledByDefault(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	body, contentType := multipartBody(t, sampleCSV, map[string]string{"apply": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "apply mode is disabled")
}

func TestHandleProvision_ApplyWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Provision.AllowHTTPApply = true
	adapter := newMemAdapter()
	srv := newTestServer(t, cfg, adapter)

	body, contentType := multipartBody(t, sampleCSV, map[string]string{"apply": "true"})
	req := httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report provisioning.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.DryRun)
	assert.Positive(t, adapter.mutations)
}

func TestHandleProvision_ParseFailure(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	body, contentType := multipartBody(t, "first_name,last_name,email\nAda,Lovelace,ada@example.com\n", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing required columns")
}

func TestHandleProvision_MissingFile(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("apply", "false"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/provision", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing CSV file field")
}

func TestHandleProvision_APIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret-key"}
	srv := newTestServer(t, cfg, nil)

	body, contentType := multipartBody(t, sampleCSV, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, contentType = multipartBody(t, sampleCSV, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body, contentType = multipartBody(t, sampleCSV, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/provision", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", "secret-key")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
