package handlers

import (
	"context"
	"sync"
	"time"

	"capteur/internal/models"
	"capteur/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMeasures struct {
	mu sync.Mutex

	recordResp models.MeasureRecord
	recordErr  error
	lastInput  service.MeasureInput
	records    int

	listResp   []models.MeasureRecord
	listErr    error
	lastFilter service.MeasureFilter

	latestResp models.MeasureRecord
	latestErr  error
	lastLatest string
}

func (m *mockMeasures) Record(ctx context.Context, in service.MeasureInput) (models.MeasureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput = in
	m.records++
	if m.recordErr != nil {
		return models.MeasureRecord{}, m.recordErr
	}
	rec := m.recordResp
	rec.CapteurID = in.CapteurID
	rec.Timestamp = in.Timestamp
	return rec, nil
}

func (m *mockMeasures) List(ctx context.Context, f service.MeasureFilter) ([]models.MeasureRecord, error) {
	m.lastFilter = f
	return m.listResp, m.listErr
}

func (m *mockMeasures) Latest(ctx context.Context, capteur string) (models.MeasureRecord, error) {
	m.lastLatest = capteur
	return m.latestResp, m.latestErr
}

type fixedClock struct{ sample models.RemoteTimeSample }

func (c fixedClock) Now() models.RemoteTimeSample { return c.sample }

func newTestService(m *mockMeasures) *service.Service {
	return &service.Service{
		Measures: m,
		Clock: fixedClock{sample: models.RemoteTimeSample{
			Now:     time.Date(2024, 11, 14, 20, 15, 30, 0, time.UTC).Format(time.RFC3339Nano),
			Weekday: 4,
		}},
		Stream: service.NewHub(nil),
	}
}

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
