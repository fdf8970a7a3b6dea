package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vipplay/articleforge/internal/api"
	"github.com/vipplay/articleforge/internal/api/handler"
	mw "github.com/vipplay/articleforge/internal/api/middleware"
	"github.com/vipplay/articleforge/internal/limiter"
	"github.com/vipplay/articleforge/internal/orchestrate"
	"github.com/vipplay/articleforge/internal/store"
	"github.com/vipplay/articleforge/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// --- fixtures ---

var (
	testOwnerID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testRawKey  = "af_test_contract_key_1234567890"
	testPrefix  = testRawKey[:8]
	testJobID   = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
)

func testKeyHash() string {
	h, _ := bcrypt.GenerateFromPassword([]byte(testRawKey), bcrypt.MinCost)
	return string(h)
}

// --- mock store (auth and key management only) ---

type mockStore struct {
	keys      []*models.APIKey
	created   []*models.APIKey
	revoked   []uuid.UUID
	revokeErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		keys: []*models.APIKey{{
			ID:        uuid.New(),
			OwnerID:   testOwnerID,
			Name:      "contract",
			KeyHash:   testKeyHash(),
			KeyPrefix: testPrefix,
			Scopes:    []string{"generate", "read", "admin"},
		}},
	}
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
func (m *mockStore) GetDefaultOwner(_ context.Context) (*models.Owner, error) {
	return &models.Owner{ID: testOwnerID, Name: "default"}, nil
}
func (m *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	var matched []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			matched = append(matched, k)
		}
	}
	return matched, nil
}
func (m *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (m *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.created = append(m.created, key)
	m.keys = append(m.keys, key)
	return nil
}
func (m *mockStore) ListAPIKeys(_ context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.OwnerID == ownerID {
			out = append(out, k)
		}
	}
	return out, nil
}
func (m *mockStore) RevokeAPIKey(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked = append(m.revoked, id)
	return nil
}
func (m *mockStore) CreateJob(_ context.Context, _ *models.GenerationJob) error { return nil }
func (m *mockStore) GetJob(_ context.Context, _ uuid.UUID) (*models.GenerationJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) GetOwnedJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.GenerationJob, error) {
	return nil, store.ErrNotFound
}
func (m *mockStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.GenerationJob, int, error) {
	return nil, 0, nil
}
func (m *mockStore) CreateJobBudgeted(_ context.Context, _ *models.GenerationJob, _ string, _ int) error {
	return nil
}
func (m *mockStore) CountQueuedBefore(_ context.Context, _ time.Time) (int, error) { return 0, nil }
func (m *mockStore) UpdateJobStatus(_ context.Context, _ uuid.UUID, _ string, _ string, _ ...store.JobUpdateOption) error {
	return nil
}
func (m *mockStore) UpdateJobProgress(_ context.Context, _ uuid.UUID, _ int) error { return nil }
func (m *mockStore) ListStuckProcessing(_ context.Context, _ time.Time) ([]*models.GenerationJob, error) {
	return nil, nil
}
func (m *mockStore) SaveResult(_ context.Context, _ *models.JobResult) error { return nil }
func (m *mockStore) GetResultByJobID(_ context.Context, _ uuid.UUID) (*models.JobResult, error) {
	return nil, store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// --- mock cache ---

type mockCache struct{ counter int64 }

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ string, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID) (string, bool, error) {
	return "", false, nil
}
func (m *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	m.counter++
	return m.counter, nil
}

// --- fake orchestrator ---

type fakeOrchestrator struct {
	jobs      map[uuid.UUID]*models.GenerationJob
	results   map[uuid.UUID]*models.JobResult
	submitErr error
	cancelErr error
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		jobs:    make(map[uuid.UUID]*models.GenerationJob),
		results: make(map[uuid.UUID]*models.JobResult),
	}
}

func (f *fakeOrchestrator) addJob(job *models.GenerationJob) { f.jobs[job.ID] = job }

func (f *fakeOrchestrator) Submit(_ context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := &models.GenerationJob{
		ID: uuid.New(), OwnerID: ownerID, Kind: models.JobKindSingle,
		Status: models.JobStatusQueued, Request: req,
		QueuePosition: 2, CreatedAt: time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeOrchestrator) SubmitBulk(_ context.Context, ownerID uuid.UUID, req models.GenerationRequest) (*models.GenerationJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if len(req.Topics) == 0 {
		return nil, fmt.Errorf("%w: bulk job requires at least one topic", orchestrate.ErrInvalidRequest)
	}
	job := &models.GenerationJob{
		ID: uuid.New(), OwnerID: ownerID, Kind: models.JobKindBulk,
		Status: models.JobStatusQueued, Request: req,
		CreatedAt: time.Now().UTC(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeOrchestrator) Get(_ context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, *models.JobResult, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, nil, store.ErrNotFound
	}
	return job, f.results[jobID], nil
}

func (f *fakeOrchestrator) Status(_ context.Context, ownerID, jobID uuid.UUID) (string, error) {
	job, ok := f.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return "", store.ErrNotFound
	}
	return job.Status, nil
}

func (f *fakeOrchestrator) List(_ context.Context, filter store.JobFilter) ([]*models.GenerationJob, int, error) {
	var out []*models.GenerationJob
	for _, job := range f.jobs {
		if job.OwnerID == filter.OwnerID {
			out = append(out, job)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrchestrator) Cancel(_ context.Context, ownerID, jobID uuid.UUID) (*models.GenerationJob, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	job, ok := f.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if models.IsTerminalStatus(job.Status) {
		return nil, fmt.Errorf("%w: status is %s", orchestrate.ErrNotCancellable, job.Status)
	}
	job.Status = models.JobStatusCancelled
	return job, nil
}

var _ handler.Orchestrator = (*fakeOrchestrator)(nil)

// --- harness ---

type fixture struct {
	router http.Handler
	orch   *fakeOrchestrator
	store  *mockStore
}

func newFixture() *fixture {
	st := newMockStore()
	orch := newFakeOrchestrator()
	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(&mockCache{}, 1000),

		SystemStatusHandler: handler.NewSystemStatusHandler(limiter.New(2), false),

		GenerateHandler:     handler.NewGenerateHandler(orch),
		BulkGenerateHandler: handler.NewBulkGenerateHandler(orch),
		GetJobHandler:       handler.NewGetJobHandler(orch),
		JobStatusHandler:    handler.NewJobStatusHandler(orch),
		ListJobsHandler:     handler.NewListJobsHandler(orch),
		CancelJobHandler:    handler.NewCancelJobHandler(orch),

		CreateKeyHandler: handler.NewCreateKeyHandler(st),
		ListKeysHandler:  handler.NewListKeysHandler(st),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(st),
	})
	return &fixture{router: router, orch: orch, store: st}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data envelope: %s", w.Body.String())
	return data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", w.Body.String())
	return errObj
}

// --- generate ---

func TestGenerate_202_WithJobID(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/generate", map[string]any{
		"mode": "topic", "topic": "urban beekeeping", "word_count": 800,
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, "queued", data["status"])
	assert.Equal(t, "single", data["kind"])
	assert.Equal(t, float64(2), data["queue_position"])
}

func TestGenerate_400_InvalidJSON(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest("POST", "/api/v1/generate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w)["code"])
}

func TestGenerate_400_ValidationError(t *testing.T) {
	f := newFixture()
	f.orch.submitErr = fmt.Errorf("%w: topic mode requires a topic", orchestrate.ErrInvalidRequest)

	w := f.do(t, "POST", "/api/v1/generate", map[string]any{"mode": "topic"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w)["code"])
}

func TestGenerate_429_BudgetExhausted(t *testing.T) {
	f := newFixture()
	f.orch.submitErr = fmt.Errorf("%w: 10 active jobs, limit 10", orchestrate.ErrBudgetExhausted)

	w := f.do(t, "POST", "/api/v1/generate", map[string]any{"mode": "topic", "topic": "x"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "BUDGET_EXHAUSTED", decodeError(t, w)["code"])
}

func TestGenerate_401_MissingToken(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest("POST", "/api/v1/generate", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- bulk generate ---

func TestBulkGenerate_202_WithTopics(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/generate/bulk", map[string]any{
		"mode": "topic", "topics": []string{"a", "b", "c"},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "bulk", data["kind"])
}

func TestBulkGenerate_202_SeedExpansion(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/generate/bulk", map[string]any{
		"mode": "topic", "seed_topic": "container security", "count": 4,
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	jobID := uuid.MustParse(data["id"].(string))
	job := f.orch.jobs[jobID]
	require.NotNil(t, job)
	assert.Len(t, job.Request.Topics, 4)
}

func TestBulkGenerate_400_NoTopics(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/generate/bulk", map[string]any{"mode": "topic"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- job polling ---

func TestGetJob_200_WithResult(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: testOwnerID, Kind: models.JobKindSingle,
		Status: models.JobStatusCompleted, Progress: 100,
		Request:   models.GenerationRequest{Mode: models.ModeTopic, Topic: "x"},
		CreatedAt: time.Now().UTC(),
	})
	f.orch.results[testJobID] = &models.JobResult{
		JobID: testJobID, Content: "Article body", Total: 1, CompletedCount: 1,
		Provider: "mock",
	}

	w := f.do(t, "GET", "/api/v1/jobs/"+testJobID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "completed", data["status"])
	result := data["result"].(map[string]any)
	assert.Equal(t, "Article body", result["content"])
	assert.Equal(t, "mock", result["provider"])
}

func TestGetJob_200_QueuedWithoutResult(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: testOwnerID, Kind: models.JobKindSingle,
		Status: models.JobStatusQueued, QueuePosition: 3,
		Request:   models.GenerationRequest{Mode: models.ModeTopic, Topic: "x"},
		CreatedAt: time.Now().UTC(),
	})

	w := f.do(t, "GET", "/api/v1/jobs/"+testJobID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "queued", data["status"])
	assert.Equal(t, float64(3), data["queue_position"])
	_, hasResult := data["result"]
	assert.False(t, hasResult)
}

func TestGetJob_404_WrongOwner(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: uuid.New(), Status: models.JobStatusQueued,
	})

	w := f.do(t, "GET", "/api/v1/jobs/"+testJobID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_400_BadID(t *testing.T) {
	f := newFixture()

	w := f.do(t, "GET", "/api/v1/jobs/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobStatus_200(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: testOwnerID, Status: models.JobStatusProcessing,
	})

	w := f.do(t, "GET", "/api/v1/jobs/"+testJobID.String()+"/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "processing", data["status"])
}

func TestListJobs_200(t *testing.T) {
	f := newFixture()
	for i := 0; i < 2; i++ {
		f.orch.addJob(&models.GenerationJob{
			ID: uuid.New(), OwnerID: testOwnerID, Kind: models.JobKindSingle,
			Status:    models.JobStatusCompleted,
			CreatedAt: time.Now().UTC(),
		})
	}

	w := f.do(t, "GET", "/api/v1/jobs?page=1&limit=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["data"], 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(2), meta["total"])
}

// --- cancel ---

func TestCancelJob_200(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: testOwnerID, Status: models.JobStatusQueued,
	})

	w := f.do(t, "DELETE", "/api/v1/jobs/"+testJobID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "cancelled", data["status"])
}

func TestCancelJob_409_AlreadyFinished(t *testing.T) {
	f := newFixture()
	f.orch.addJob(&models.GenerationJob{
		ID: testJobID, OwnerID: testOwnerID, Status: models.JobStatusCompleted,
	})

	w := f.do(t, "DELETE", "/api/v1/jobs/"+testJobID.String(), nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_CANCELLABLE", decodeError(t, w)["code"])
}

func TestCancelJob_404_Missing(t *testing.T) {
	f := newFixture()

	w := f.do(t, "DELETE", "/api/v1/jobs/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- admin keys ---

func TestCreateKey_201_WithRawKey(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/admin/keys", map[string]any{
		"name": "ci-key", "scopes": []string{"generate"},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	rawKey := data["key"].(string)
	assert.True(t, len(rawKey) > 8)
	assert.Equal(t, rawKey[:8], data["key_prefix"])
	require.Len(t, f.store.created, 1)
	assert.NotEqual(t, rawKey, f.store.created[0].KeyHash)
}

func TestCreateKey_400_MissingName(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/admin/keys", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateKey_400_UnknownScope(t *testing.T) {
	f := newFixture()

	w := f.do(t, "POST", "/api/v1/admin/keys", map[string]any{
		"name": "x", "scopes": []string{"superuser"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListKeys_DoesNotExposeRawKey(t *testing.T) {
	f := newFixture()

	w := f.do(t, "GET", "/api/v1/admin/keys", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "key_hash")
	assert.NotContains(t, w.Body.String(), testKeyHash())
}

func TestRevokeKey_200(t *testing.T) {
	f := newFixture()
	keyID := uuid.New()

	w := f.do(t, "DELETE", "/api/v1/admin/keys/"+keyID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.store.revoked, keyID)
}

func TestRevokeKey_404(t *testing.T) {
	f := newFixture()
	f.store.revokeErr = store.ErrNotFound

	w := f.do(t, "DELETE", "/api/v1/admin/keys/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- scope enforcement ---

func TestAdminEndpoints_403_WithoutAdminScope(t *testing.T) {
	st := newMockStore()
	st.keys[0].Scopes = []string{"generate", "read"}
	router := api.NewRouter(api.Dependencies{
		Auth:             mw.NewAuth(st),
		RateLimit:        mw.NewRateLimit(&mockCache{}, 1000),
		CreateKeyHandler: handler.NewCreateKeyHandler(st),
	})

	req := httptest.NewRequest("POST", "/api/v1/admin/keys", bytes.NewReader([]byte(`{"name":"x"}`)))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- system status ---

func TestSystemStatus_200_ReportsCapacity(t *testing.T) {
	f := newFixture()

	w := f.do(t, "GET", "/api/v1/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(0), data["active_generations"])
	assert.Equal(t, float64(2), data["max_concurrent"])
	assert.Equal(t, float64(2), data["available_slots"])
	assert.Equal(t, false, data["queue_configured"])
}

// --- rate limiting ---

func TestRateLimit_Headers_Present(t *testing.T) {
	f := newFixture()

	w := f.do(t, "GET", "/api/v1/jobs", nil)

	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}
