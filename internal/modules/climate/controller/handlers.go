package controller

import (
	"bytes"
	"errors"
	"net/http"

	"climate-server/internal/db"
	"climate-server/internal/logging"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/views"
	"climate-server/internal/utils"
)

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := &views.IndexData{
		Title:  "Climate API",
		Routes: c.routes(),
		Tables: c.tables,
	}
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, data); err != nil {
		logging.FromContext(r.Context()).Error("index template render failed", "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, r, http.StatusOK, buf.Bytes())
}

func (c *climateControllerImpl) handleMeasurements(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	measurements, err := c.repository(sess).ListMeasurements()
	if err != nil {
		logging.FromContext(r.Context()).Error("list measurements failed", "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, measurements)
}

func (c *climateControllerImpl) handleMeasurement(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, r, http.StatusBadRequest, "invalid measurement id")
		return
	}

	m, err := c.repository(sess).GetMeasurement(id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, r, http.StatusNotFound, "measurement not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("get measurement failed", "id", id, "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load measurement")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, m)
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	stations, err := c.repository(sess).ListStations()
	if err != nil {
		logging.FromContext(r.Context()).Error("list stations failed", "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, stations)
}

func (c *climateControllerImpl) handleStation(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	id, err := parseID(r)
	if err != nil {
		utils.WriteError(w, r, http.StatusBadRequest, "invalid station id")
		return
	}

	s, err := c.repository(sess).GetStation(id)
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, r, http.StatusNotFound, "station not found")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("get station failed", "id", id, "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load station")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, s)
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	logger := logging.FromContext(r.Context())
	rows, err := c.repository(sess).Precipitation(c.queries.PrecipitationCutoff)
	if err != nil {
		logger.Error("precipitation query failed", "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load precipitation")
		return
	}

	out, overwritten := datedValuesToMap(rows)
	if overwritten > 0 {
		logger.Debug("precipitation: later rows replaced earlier ones for the same date", "overwritten", overwritten)
	}
	utils.WriteJSON(w, r, http.StatusOK, out)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	logger := logging.FromContext(r.Context())
	rows, err := c.repository(sess).TemperatureObservations(c.queries.TobsStation, c.queries.TobsCutoff)
	if err != nil {
		logger.Error("tobs query failed", "station", c.queries.TobsStation, "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load temperature observations")
		return
	}

	out, overwritten := datedValuesToMap(rows)
	if overwritten > 0 {
		logger.Debug("tobs: later rows replaced earlier ones for the same date", "overwritten", overwritten)
	}
	utils.WriteJSON(w, r, http.StatusOK, out)
}

func (c *climateControllerImpl) handleStatsFrom(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	c.writeStats(w, r, sess, r.PathValue("start"), nil)
}

func (c *climateControllerImpl) handleStatsRange(w http.ResponseWriter, r *http.Request, sess *db.Session) {
	end := r.PathValue("end")
	c.writeStats(w, r, sess, r.PathValue("start"), &end)
}

func (c *climateControllerImpl) writeStats(w http.ResponseWriter, r *http.Request, sess *db.Session, start string, end *string) {
	stats, err := c.repository(sess).TemperatureStats(start, end)
	if err != nil {
		logging.FromContext(r.Context()).Error("temperature stats failed", "start", start, "error", err)
		utils.WriteError(w, r, http.StatusInternalServerError, "failed to load temperature stats")
		return
	}
	utils.WriteJSON(w, r, http.StatusOK, stats.List())
}
