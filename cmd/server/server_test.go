package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liamcoop/tariffs/internal/fixtures"
	"github.com/liamcoop/tariffs/internal/metrics"
	"github.com/liamcoop/tariffs/multitenantengine"
	"github.com/liamcoop/tariffs/tariff"
)

var evaluationDay = time.Date(2021, time.December, 15, 9, 0, 0, 0, time.UTC)

// memoryManager serves in-memory tenant engines so handlers run without PostgreSQL
type memoryManager struct {
	mu       sync.Mutex
	tenants  map[string]*multitenantengine.TenantEngine
	recorder tariff.Recorder
	reloads  int
}

func newMemoryManager(recorder tariff.Recorder) *memoryManager {
	return &memoryManager{
		tenants: make(map[string]*multitenantengine.TenantEngine),
		recorder: recorder,
	}
}

func (m *memoryManager) CreateTenant(name string) (*multitenantengine.Tenant, error) {
	if err := multitenantengine.ValidateTenantName(name); err != nil {
		return nil, err
	}

	opts := []tariff.EngineOption{
		tariff.WithPipeline(tariff.NewPipeline(tariff.WithClock(func() time.Time { return evaluationDay }))),
	}
	if m.recorder != nil {
		opts = append(opts, tariff.WithRecorder(m.recorder))
	}
	engine, err := tariff.NewEngine(tariff.NewInMemoryTariffStore(), opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t := multitenantengine.Tenant{
		ID:        fmt.Sprintf("tenant-%d", len(m.tenants)+1),
		Name:      name,
		CreatedAt: time.Now(),
	}
	t.UpdatedAt = t.CreatedAt
	m.tenants[t.ID] = &multitenantengine.TenantEngine{Tenant: t, Engine: engine}
	return &t, nil
}

func (m *memoryManager) GetEngine(tenantID string) (*tariff.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	te, ok := m.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", multitenantengine.ErrTenantNotFound, tenantID)
	}
	return te.Engine, nil
}

func (m *memoryManager) ReloadTenant(tenantID string) error {
	if _, err := m.GetEngine(tenantID); err != nil {
		return err
	}
	m.mu.Lock()
	m.reloads++
	m.mu.Unlock()
	return nil
}

func (m *memoryManager) ListTenants() []multitenantengine.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]multitenantengine.Tenant, 0, len(m.tenants))
	for _, te := range m.tenants {
		out = append(out, te.Tenant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func newTestServer(t *testing.T) (*Server, *memoryManager, string) {
	t.Helper()
	manager := newMemoryManager(nil)
	server := NewServer(nil, manager)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{Name: "Bangkok Clinic"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant: status %d, body %s", rec.Code, rec.Body.String())
	}
	tenant := decode[multitenantengine.Tenant](t, rec)
	return server, manager, tenant.ID
}

func tariffBody(tr *tariff.Tariff) map[string]any {
	return map[string]any{
		"id":                tr.ID,
		"title":             tr.Title,
		"description":       tr.Description,
		"patientConditions": tr.PatientConditions,
		"itemConditions":    tr.ItemConditions,
		"startDate":         tr.StartDate,
		"endDate":           tr.EndDate,
		"active":            tr.Active,
	}
}

func applicabilityBody(patient tariff.Person) ApplicabilityRequest {
	req := ApplicabilityRequest{
		Patient: PatientRequest{
			Name:        patient.Name,
			Age:         patient.Age,
			Gender:      patient.Gender,
			DateOfBirth: patient.DateOfBirth.Format(time.DateOnly),
			Privilege:   patient.Privilege,
		},
	}
	for _, line := range fixtures.SampleBasket() {
		req.Basket = append(req.Basket, BasketLineRequest{Item: line.Item, Quantity: line.Quantity})
	}
	return req
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	health := decode[HealthResponse](t, rec)
	if health.Status != "healthy" || health.TenantsLoaded != 1 {
		t.Errorf("Unexpected health response: %+v", health)
	}
}

func TestTenants(t *testing.T) {
	server, manager, tenantID := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/tenants", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	list := decode[TenantsListResponse](t, rec)
	if len(list.Tenants) != 1 || list.Tenants[0].ID != tenantID {
		t.Errorf("Expected one tenant %s, got %+v", tenantID, list.Tenants)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{Name: "metrics"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Reserved name: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/tenants/"+tenantID+"/reload", nil)
	if rec.Code != http.StatusNoContent || manager.reloads != 1 {
		t.Errorf("Reload: expected 204 and one reload, got %d and %d", rec.Code, manager.reloads)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/tenants/missing/reload", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Reload unknown tenant: expected 404, got %d", rec.Code)
	}
}

func TestTariffCRUD(t *testing.T) {
	server, _, tenantID := newTestServer(t)
	base := "/api/v1/tenants/" + tenantID + "/tariffs"

	rec := doRequest(t, server, http.MethodPost, base, tariffBody(fixtures.MiddleAgedManTariff()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[tariff.Tariff](t, rec)
	if created.ID != "middle-aged-man" {
		t.Errorf("Expected ID middle-aged-man, got %s", created.ID)
	}

	rec = doRequest(t, server, http.MethodPost, base, tariffBody(fixtures.MiddleAgedManTariff()))
	if rec.Code != http.StatusConflict {
		t.Errorf("Duplicate: expected 409, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodGet, base+"/middle-aged-man", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get: expected 200, got %d", rec.Code)
	}
	got := decode[tariff.Tariff](t, rec)
	if got.Title != "Middle Aged Man Tariff" || len(got.PatientConditions) != 2 {
		t.Errorf("Unexpected tariff: %+v", got)
	}

	rec = doRequest(t, server, http.MethodGet, base, nil)
	list := decode[TariffsListResponse](t, rec)
	if len(list.Tariffs) != 1 {
		t.Errorf("Expected 1 active tariff, got %d", len(list.Tariffs))
	}

	update := tariffBody(fixtures.MiddleAgedManTariff())
	update["title"] = "Senior Man Tariff"
	rec = doRequest(t, server, http.MethodPut, base+"/middle-aged-man", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, server, http.MethodPut, base+"/missing", update)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Update unknown: expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodDelete, base+"/middle-aged-man", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Delete: expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodGet, base+"/middle-aged-man", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Get after delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateTariffRejectsBadDefinitions(t *testing.T) {
	server, _, tenantID := newTestServer(t)
	base := "/api/v1/tenants/" + tenantID + "/tariffs"

	testCases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"MissingTitle", func(b map[string]any) { b["title"] = "" }},
		{"MissingStartDate", func(b map[string]any) { b["startDate"] = time.Time{} }},
		{"UnknownOperator", func(b map[string]any) {
			b["patientConditions"] = []tariff.Condition{
				{Field: "age", Type: tariff.SubjectPatient, Operator: "isAround", Value: 40},
			}
		}},
		{"UnknownField", func(b map[string]any) {
			b["itemConditions"] = []tariff.Condition{
				{Field: "colour", Type: tariff.SubjectItem, Operator: tariff.OpIsEqual, Value: "red"},
			}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body := tariffBody(fixtures.MiddleAgedManTariff())
			tc.mutate(body)
			rec := doRequest(t, server, http.MethodPost, base, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestApplicability(t *testing.T) {
	server, _, tenantID := newTestServer(t)
	base := "/api/v1/tenants/" + tenantID + "/tariffs"

	rec := doRequest(t, server, http.MethodPost, base, tariffBody(fixtures.MiddleAgedManTariff()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	chalermpon, _ := fixtures.Patient("Chalermpon")
	rec = doRequest(t, server, http.MethodPost, base+"/middle-aged-man/applicability", applicabilityBody(chalermpon))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ApplicabilityResponse](t, rec)
	if !resp.Active || !resp.PatientEligible {
		t.Errorf("Expected active and eligible, got %+v", resp)
	}
	if resp.AppliedCount != 4 {
		t.Errorf("Expected 4 applied lines, got %d", resp.AppliedCount)
	}
	if !resp.At.Equal(evaluationDay) {
		t.Errorf("Expected evaluation at %v, got %v", evaluationDay, resp.At)
	}
	for _, line := range resp.Basket {
		want := line.Item.Type == "medicine" || line.Item.Type == "doctor fee"
		if line.Applied == nil || *line.Applied != want {
			t.Errorf("Line %s: applied=%v, want %v", line.Name, line.Applied, want)
		}
	}

	ittirit, _ := fixtures.Patient("Ittirit")
	rec = doRequest(t, server, http.MethodPost, base+"/middle-aged-man/applicability", applicabilityBody(ittirit))
	resp = decode[ApplicabilityResponse](t, rec)
	if !resp.Active || resp.PatientEligible || resp.AppliedCount != 0 {
		t.Errorf("Expected ineligible patient with nothing applied, got %+v", resp)
	}
}

func TestApplicabilityErrors(t *testing.T) {
	server, _, tenantID := newTestServer(t)
	base := "/api/v1/tenants/" + tenantID + "/tariffs"

	disabled := tariffBody(fixtures.BirthMonthTariff())
	disabled["active"] = false
	if rec := doRequest(t, server, http.MethodPost, base, disabled); rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	chalermpon, _ := fixtures.Patient("Chalermpon")

	testCases := []struct {
		name string
		path string
		body any
		want int
	}{
		{"DisabledTariff", base + "/birth-month/applicability", applicabilityBody(chalermpon), http.StatusConflict},
		{"UnknownTariff", base + "/missing/applicability", applicabilityBody(chalermpon), http.StatusNotFound},
		{"UnknownTenant", "/api/v1/tenants/missing/tariffs/birth-month/applicability", applicabilityBody(chalermpon), http.StatusNotFound},
		{"BadDateOfBirth", base + "/birth-month/applicability", map[string]any{
			"patient": map[string]any{"name": "X", "dob": "3rd of December"},
		}, http.StatusBadRequest},
		{"NegativeQuantity", base + "/birth-month/applicability", map[string]any{
			"basket": []map[string]any{{"item": fixtures.Catalog()[0], "quantity": -1}},
		}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, server, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Errorf("Expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestApplicabilityWithoutDateOfBirth(t *testing.T) {
	server, _, tenantID := newTestServer(t)
	base := "/api/v1/tenants/" + tenantID + "/tariffs"

	if rec := doRequest(t, server, http.MethodPost, base, tariffBody(fixtures.MiddleAgedManTariff())); rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	body := applicabilityBody(mustFixturePatient(t, "Chalermpon"))
	body.Patient.DateOfBirth = ""

	rec := doRequest(t, server, http.MethodPost, base+"/middle-aged-man/applicability", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ErrorResponse](t, rec)
	if !strings.Contains(resp.Details, "dob") {
		t.Errorf("Expected details to name the dob field, got %q", resp.Details)
	}
}

func mustFixturePatient(t *testing.T, name string) tariff.Person {
	t.Helper()
	p, ok := fixtures.Patient(name)
	if !ok {
		t.Fatalf("No fixture patient %q", name)
	}
	return p
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewManager()
	manager := newMemoryManager(m)
	server := NewServer(nil, manager, WithMetrics(m))

	rec := doRequest(t, server, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{Name: "Metrics Clinic"})
	tenant := decode[multitenantengine.Tenant](t, rec)
	base := "/api/v1/tenants/" + tenant.ID + "/tariffs"

	doRequest(t, server, http.MethodPost, base, tariffBody(fixtures.MiddleAgedManTariff()))
	chalermpon, _ := fixtures.Patient("Chalermpon")
	doRequest(t, server, http.MethodPost, base+"/middle-aged-man/applicability", applicabilityBody(chalermpon))

	rec = doRequest(t, server, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`tariffs_engine_evaluations_total{outcome="applied"} 1`,
		`route="/api/v1/tenants/{tenantId}/tariffs/{tariffId}/applicability"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics output to contain %s", want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", tariff.ErrTariffNotFound), http.StatusNotFound},
		{multitenantengine.ErrTenantNotFound, http.StatusNotFound},
		{tariff.ErrTariffExists, http.StatusConflict},
		{tariff.ErrTariffDisabled, http.StatusConflict},
		{tariff.ErrInvalidTariff, http.StatusBadRequest},
		{&tariff.ConfigurationError{}, http.StatusBadRequest},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
