package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-api/internal/models"
	"github.com/noah-isme/admissions-api/internal/service"
	"github.com/noah-isme/admissions-api/pkg/response"
)

type fakeApplicantRepo struct {
	applicants map[string]models.Applicant
}

func (f *fakeApplicantRepo) List(ctx context.Context, filter models.ApplicantFilter) ([]models.Applicant, int, error) {
	out := make([]models.Applicant, 0, len(f.applicants))
	for _, a := range f.applicants {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (f *fakeApplicantRepo) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	if a, ok := f.applicants[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeApplicantRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, reason *string) error {
	a, ok := f.applicants[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.ApplicationStatus = status
	a.StatusReason = reason
	f.applicants[id] = a
	return nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) Dispatch(models.StatusNotification) {}

func newApplicantHandler(repo *fakeApplicantRepo) *ApplicantHandler {
	return NewApplicantHandler(service.NewApplicationService(repo, fakeDispatcher{}, nil, nil))
}

func TestApplicantHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicantHandler(&fakeApplicantRepo{applicants: map[string]models.Applicant{
		"a1": {ID: "a1", Email: "jo@example.com", ApplicationStatus: models.ApplicationStatusPending, Role: models.RoleApplicant},
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applicants/a1", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Nil(t, envelope.Error)
}

func TestApplicantHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicantHandler(&fakeApplicantRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applicants/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplicantHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeApplicantRepo{applicants: map[string]models.Applicant{
		"a1": {ID: "a1", ApplicationStatus: models.ApplicationStatusPending, Role: models.RoleApplicant},
	}}
	handler := newApplicantHandler(repo)

	body, _ := json.Marshal(map[string]string{
		"application_status": "UNDER_REVIEW",
		"reason":             "documents incomplete",
	})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/applicants/a1/status", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ApplicationStatusUnderReview, repo.applicants["a1"].ApplicationStatus)
}

func TestApplicantHandlerUpdateStatusInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicantHandler(&fakeApplicantRepo{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/applicants/a1/status", bytes.NewReader([]byte("{")))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplicantHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newApplicantHandler(&fakeApplicantRepo{applicants: map[string]models.Applicant{
		"a1": {ID: "a1", ApplicationStatus: models.ApplicationStatusPending},
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/applicants?status=pending&page=1&limit=10", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}
