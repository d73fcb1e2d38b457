package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/logging"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
)

type mockRepo struct {
	measurements    []types.Measurement
	measurementsErr error
	stations        []types.Station
	stationsErr     error
	dated           []types.DatedValue
	datedErr        error
	stats           types.TemperatureStats
	statsErr        error

	gotID     int64
	gotCutoff string
	gotTobsAt string
	gotStart  string
	gotEnd    *string
}

func (m *mockRepo) ListMeasurements() ([]types.Measurement, error) {
	return m.measurements, m.measurementsErr
}

func (m *mockRepo) GetMeasurement(id int64) (types.Measurement, error) {
	m.gotID = id
	if m.measurementsErr != nil {
		return types.Measurement{}, m.measurementsErr
	}
	for _, ms := range m.measurements {
		if ms.ID == id {
			return ms, nil
		}
	}
	return types.Measurement{}, fmt.Errorf("measurement %d: %w", id, repository.ErrNotFound)
}

func (m *mockRepo) ListStations() ([]types.Station, error) {
	return m.stations, m.stationsErr
}

func (m *mockRepo) GetStation(id int64) (types.Station, error) {
	m.gotID = id
	if m.stationsErr != nil {
		return types.Station{}, m.stationsErr
	}
	for _, s := range m.stations {
		if s.ID == id {
			return s, nil
		}
	}
	return types.Station{}, fmt.Errorf("station %d: %w", id, repository.ErrNotFound)
}

func (m *mockRepo) Precipitation(cutoff string) ([]types.DatedValue, error) {
	m.gotCutoff = cutoff
	return m.dated, m.datedErr
}

func (m *mockRepo) TemperatureObservations(station string, cutoff string) ([]types.DatedValue, error) {
	m.gotTobsAt = station
	m.gotCutoff = cutoff
	return m.dated, m.datedErr
}

func (m *mockRepo) TemperatureStats(start string, end *string) (types.TemperatureStats, error) {
	m.gotStart = start
	m.gotEnd = end
	return m.stats, m.statsErr
}

type fakeSessions struct {
	err   error
	calls int
}

func (f *fakeSessions) Acquire(ctx context.Context) (*db.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &db.Session{}, nil
}

var testQueries = config.Queries{
	PrecipitationCutoff: "2017-08-23",
	TobsStation:         "USC00519281",
	TobsCutoff:          "2017-08-23",
}

func newTestController(repo *mockRepo, sessions *fakeSessions) *climateControllerImpl {
	factory := func(*db.Session) repository.ClimateRepository { return repo }
	return NewClimateController(sessions, factory, testQueries, nil).(*climateControllerImpl)
}

func f(v float64) *float64 { return &v }

func str(s string) *string { return &s }

func Test_handleIndex(t *testing.T) {
	ctrl := newTestController(&mockRepo{}, &fakeSessions{})

	t.Run("lists validated tables", func(t *testing.T) {
		if err := views.LoadTemplates(); err != nil {
			t.Fatalf("LoadTemplates: %v", err)
		}
		ctrl := NewClimateController(&fakeSessions{}, nil, testQueries, []views.TableInfo{
			{Name: "station", Columns: []string{"id", "station", "name"}},
		}).(*climateControllerImpl)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		ctrl.handleIndex(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "id, station, name") {
			t.Errorf("body missing station columns; got %q", rec.Body.String())
		}
	})

	t.Run("sets Content-Type and lists routes", func(t *testing.T) {
		if err := views.LoadTemplates(); err != nil {
			t.Fatalf("LoadTemplates: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		ctrl.handleIndex(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("Content-Type = %q; want text/html; charset=utf-8", ct)
		}
		body := rec.Body.String()
		for _, want := range []string{
			`href="/api/v1.0/precipitation"`,
			`href="/api/v1.0/stations"`,
			`href="/api/v1.0/stations/1"`,
			`href="/api/v1.0/measurements"`,
			`href="/api/v1.0/measurements/1"`,
			`href="/api/v1.0/tobs"`,
			"/api/v1.0/{start}/{end}",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q", want)
			}
		}
	})
}

func Test_handleMeasurements(t *testing.T) {
	t.Run("returns measurements on success", func(t *testing.T) {
		repo := &mockRepo{measurements: []types.Measurement{
			{ID: 1, Station: str("USC00519397"), Date: str("2010-01-01"), Prcp: f(0.08), Tobs: f(65)},
			{ID: 2, Station: str("USC00519397"), Date: str("2010-01-02"), Prcp: nil, Tobs: f(63)},
		}}
		ctrl := newTestController(repo, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/measurements", nil)
		rec := httptest.NewRecorder()

		ctrl.handleMeasurements(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got []map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(body) = %d; want 2", len(got))
		}
		if got[0]["date"] != "2010-01-01" || got[0]["station"] != "USC00519397" || got[0]["prcp"] != 0.08 {
			t.Errorf("first row = %v", got[0])
		}
		if v, ok := got[1]["prcp"]; !ok || v != nil {
			t.Errorf("second row prcp = %v (present %v); want null", v, ok)
		}
	})

	t.Run("empty table returns []", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{measurements: []types.Measurement{}}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/measurements", nil)
		rec := httptest.NewRecorder()

		ctrl.handleMeasurements(rec, req, nil)

		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Errorf("body = %q; want []", rec.Body.String())
		}
	})

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{measurementsErr: errors.New("db down")}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/measurements", nil)
		rec := httptest.NewRecorder()

		ctrl.handleMeasurements(rec, req, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
		if strings.Contains(rec.Body.String(), "db down") {
			t.Errorf("body leaks driver error: %q", rec.Body.String())
		}
	})
}

func Test_handleMeasurement(t *testing.T) {
	repo := &mockRepo{measurements: []types.Measurement{{ID: 7, Station: str("USC00519281"), Date: str("2016-08-23"), Tobs: f(77)}}}
	ctrl := newTestController(repo, &fakeSessions{})

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{name: "found", id: "7", status: http.StatusOK},
		{name: "absent id returns 404", id: "8", status: http.StatusNotFound},
		{name: "non-integer id returns 400", id: "abc", status: http.StatusBadRequest},
		{name: "negative id is a lookup", id: "-1", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1.0/measurements/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			rec := httptest.NewRecorder()

			ctrl.handleMeasurement(rec, req, nil)

			if rec.Code != tt.status {
				t.Fatalf("status = %d; want %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q; want application/json", ct)
			}
			if tt.status != http.StatusOK {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body["error"] != http.StatusText(tt.status) {
					t.Errorf("error = %q; want %q", body["error"], http.StatusText(tt.status))
				}
			}
		})
	}

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{measurementsErr: errors.New("boom")}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/measurements/1", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()

		ctrl.handleMeasurement(rec, req, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func Test_handleStations(t *testing.T) {
	stations := []types.Station{
		{ID: 1, Station: str("USC00519397"), Name: str("WAIKIKI 717.2, HI US"), Latitude: f(21.2716), Longitude: f(-157.8168), Elevation: f(3)},
		{ID: 2, Station: str("USC00513117"), Name: str("KANEOHE 838.1, HI US"), Latitude: f(21.4234), Longitude: f(-157.8015), Elevation: f(14.6)},
	}

	t.Run("returns stations on success", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{stations: stations}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations", nil)
		rec := httptest.NewRecorder()

		ctrl.handleStations(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got []types.Station
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(got) != 2 || *got[1].Name != "KANEOHE 838.1, HI US" || *got[1].Elevation != 14.6 {
			t.Errorf("body = %+v", got)
		}
	})

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{stationsErr: errors.New("boom")}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations", nil)
		rec := httptest.NewRecorder()

		ctrl.handleStations(rec, req, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})

	t.Run("single station keys match columns", func(t *testing.T) {
		repo := &mockRepo{stations: stations}
		ctrl := newTestController(repo, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations/1", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()

		ctrl.handleStation(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if repo.gotID != 1 {
			t.Errorf("looked up id %d; want 1", repo.gotID)
		}
		var got map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		for _, key := range []string{"id", "station", "name", "latitude", "longitude", "elevation"} {
			if _, ok := got[key]; !ok {
				t.Errorf("body missing key %q: %v", key, got)
			}
		}
		if len(got) != 6 {
			t.Errorf("body has %d keys; want 6", len(got))
		}
	})

	t.Run("absent station returns 404", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{stations: stations}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations/99", nil)
		req.SetPathValue("id", "99")
		rec := httptest.NewRecorder()

		ctrl.handleStation(rec, req, nil)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("non-integer station id returns 400", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{stations: stations}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations/1.5", nil)
		req.SetPathValue("id", "1.5")
		rec := httptest.NewRecorder()

		ctrl.handleStation(rec, req, nil)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func Test_handlePrecipitation(t *testing.T) {
	t.Run("uses configured cutoff and keeps the last value per date", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

		repo := &mockRepo{dated: []types.DatedValue{
			{Date: "2017-08-23", Value: f(0.0)},
			{Date: "2017-08-23", Value: f(0.45)},
			{Date: "2017-08-24", Value: nil},
		}}
		ctrl := newTestController(repo, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/precipitation", nil)
		req = req.WithContext(logging.WithContext(req.Context(), logger))
		rec := httptest.NewRecorder()

		ctrl.handlePrecipitation(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if repo.gotCutoff != "2017-08-23" {
			t.Errorf("cutoff = %q; want 2017-08-23", repo.gotCutoff)
		}
		var got map[string]*float64
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(body) = %d; want 2", len(got))
		}
		if got["2017-08-23"] == nil || *got["2017-08-23"] != 0.45 {
			t.Errorf("2017-08-23 = %v; want 0.45", got["2017-08-23"])
		}
		if v, ok := got["2017-08-24"]; !ok || v != nil {
			t.Errorf("2017-08-24 = %v (present %v); want null", v, ok)
		}
		if !strings.Contains(logs.String(), `"overwritten":1`) {
			t.Errorf("expected overwrite count in debug log; got %q", logs.String())
		}
	})

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{datedErr: errors.New("boom")}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/precipitation", nil)
		rec := httptest.NewRecorder()

		ctrl.handlePrecipitation(rec, req, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func Test_handleTobs(t *testing.T) {
	repo := &mockRepo{dated: []types.DatedValue{
		{Date: "2017-08-23", Value: f(76)},
		{Date: "2017-08-24", Value: f(79)},
	}}
	ctrl := newTestController(repo, &fakeSessions{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/tobs", nil)
	rec := httptest.NewRecorder()

	ctrl.handleTobs(rec, req, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	if repo.gotTobsAt != "USC00519281" || repo.gotCutoff != "2017-08-23" {
		t.Errorf("queried (%q, %q); want (USC00519281, 2017-08-23)", repo.gotTobsAt, repo.gotCutoff)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"2017-08-23":76,"2017-08-24":79}` {
		t.Errorf("body = %s", got)
	}

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{datedErr: errors.New("boom")}, &fakeSessions{})
		rec := httptest.NewRecorder()

		ctrl.handleTobs(rec, httptest.NewRequest(http.MethodGet, "/api/v1.0/tobs", nil), nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func Test_handleStats(t *testing.T) {
	t.Run("start only", func(t *testing.T) {
		repo := &mockRepo{stats: types.TemperatureStats{Min: f(58), Avg: f(74.5), Max: f(87)}}
		ctrl := newTestController(repo, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/2016-08-23", nil)
		req.SetPathValue("start", "2016-08-23")
		rec := httptest.NewRecorder()

		ctrl.handleStatsFrom(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if repo.gotStart != "2016-08-23" || repo.gotEnd != nil {
			t.Errorf("queried (%q, %v); want (2016-08-23, nil)", repo.gotStart, repo.gotEnd)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[58,74.5,87]" {
			t.Errorf("body = %s; want [58,74.5,87]", got)
		}
	})

	t.Run("range", func(t *testing.T) {
		repo := &mockRepo{}
		ctrl := newTestController(repo, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/2017-08-24/2017-08-22", nil)
		req.SetPathValue("start", "2017-08-24")
		req.SetPathValue("end", "2017-08-22")
		rec := httptest.NewRecorder()

		ctrl.handleStatsRange(rec, req, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if repo.gotEnd == nil || *repo.gotEnd != "2017-08-22" {
			t.Errorf("end = %v; want 2017-08-22", repo.gotEnd)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[null,null,null]" {
			t.Errorf("body = %s; want [null,null,null]", got)
		}
	})

	t.Run("returns 500 when repository fails", func(t *testing.T) {
		ctrl := newTestController(&mockRepo{statsErr: errors.New("boom")}, &fakeSessions{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/2017-01-01", nil)
		req.SetPathValue("start", "2017-01-01")
		rec := httptest.NewRecorder()

		ctrl.handleStatsFrom(rec, req, nil)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func TestRegisterRoutes(t *testing.T) {
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	repo := &mockRepo{
		measurements: []types.Measurement{{ID: 1, Date: str("2010-01-01")}},
		stations:     []types.Station{{ID: 1, Station: str("USC00519397")}},
	}
	sessions := &fakeSessions{}
	mux := http.NewServeMux()
	newTestController(repo, sessions).RegisterRoutes(mux)

	tests := []struct {
		method   string
		path     string
		status   int
		sessions int
	}{
		{http.MethodGet, "/", http.StatusOK, 0},
		{http.MethodGet, "/api/v1.0/measurements", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/measurements/1", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/measurements/2", http.StatusNotFound, 1},
		{http.MethodGet, "/api/v1.0/stations", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/stations/1", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/precipitation", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/tobs", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/2017-01-01", http.StatusOK, 1},
		{http.MethodGet, "/api/v1.0/2017-01-01/2017-12-31", http.StatusOK, 1},
		{http.MethodGet, "/nope", http.StatusNotFound, 0},
		{http.MethodGet, "/api/v1.0/a/b/c", http.StatusNotFound, 0},
		{http.MethodPost, "/api/v1.0/stations", http.StatusMethodNotAllowed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			sessions.calls = 0
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d; want %d", rec.Code, tt.status)
			}
			if sessions.calls != tt.sessions {
				t.Errorf("sessions acquired = %d; want %d", sessions.calls, tt.sessions)
			}
		})
	}

	t.Run("start route receives the path segment", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1.0/2016-08-23", nil)
		mux.ServeHTTP(httptest.NewRecorder(), req)
		if repo.gotStart != "2016-08-23" {
			t.Errorf("start = %q; want 2016-08-23", repo.gotStart)
		}
	})
}

func TestRegisterRoutes_AcquireFailure(t *testing.T) {
	mux := http.NewServeMux()
	newTestController(&mockRepo{}, &fakeSessions{err: errors.New("pool closed")}).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/v1.0/stations", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "database unavailable" {
		t.Errorf("message = %q; want database unavailable", body["message"])
	}
}
