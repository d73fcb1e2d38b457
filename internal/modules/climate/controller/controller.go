package controller

import (
	"net/http"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/httpapi"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/views"
)

const apiPrefix = "/api/v1.0"

// RepositoryFactory builds the repository a handler queries through for one session.
type RepositoryFactory func(sess *db.Session) repository.ClimateRepository

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	sessions   httpapi.SessionAcquirer
	repository RepositoryFactory
	queries    config.Queries
	tables     []views.TableInfo
}

func NewClimateController(sessions httpapi.SessionAcquirer, repository RepositoryFactory, queries config.Queries, tables []views.TableInfo) ClimateController {
	return &climateControllerImpl{
		sessions:   sessions,
		repository: repository,
		queries:    queries,
		tables:     tables,
	}
}

func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("GET "+apiPrefix+"/measurements", httpapi.WithSession(c.sessions, c.handleMeasurements))
	mux.HandleFunc("GET "+apiPrefix+"/measurements/{id}", httpapi.WithSession(c.sessions, c.handleMeasurement))
	mux.HandleFunc("GET "+apiPrefix+"/stations", httpapi.WithSession(c.sessions, c.handleStations))
	mux.HandleFunc("GET "+apiPrefix+"/stations/{id}", httpapi.WithSession(c.sessions, c.handleStation))
	mux.HandleFunc("GET "+apiPrefix+"/precipitation", httpapi.WithSession(c.sessions, c.handlePrecipitation))
	mux.HandleFunc("GET "+apiPrefix+"/tobs", httpapi.WithSession(c.sessions, c.handleTobs))
	mux.HandleFunc("GET "+apiPrefix+"/{start}", httpapi.WithSession(c.sessions, c.handleStatsFrom))
	mux.HandleFunc("GET "+apiPrefix+"/{start}/{end}", httpapi.WithSession(c.sessions, c.handleStatsRange))
}

// routes is the listing shown on the index page.
func (c *climateControllerImpl) routes() []views.Route {
	return []views.Route{
		{Pattern: apiPrefix + "/precipitation", Href: apiPrefix + "/precipitation", Description: "precipitation by date since " + c.queries.PrecipitationCutoff},
		{Pattern: apiPrefix + "/stations", Href: apiPrefix + "/stations", Description: "all stations"},
		{Pattern: apiPrefix + "/stations/{id}", Href: apiPrefix + "/stations/1", Description: "one station"},
		{Pattern: apiPrefix + "/measurements", Href: apiPrefix + "/measurements", Description: "all measurements"},
		{Pattern: apiPrefix + "/measurements/{id}", Href: apiPrefix + "/measurements/1", Description: "one measurement"},
		{Pattern: apiPrefix + "/tobs", Href: apiPrefix + "/tobs", Description: "temperature observations of " + c.queries.TobsStation + " since " + c.queries.TobsCutoff},
		{Pattern: apiPrefix + "/{start}", Description: "[min, avg, max] temperature from start"},
		{Pattern: apiPrefix + "/{start}/{end}", Description: "[min, avg, max] temperature from start to end, inclusive"},
	}
}
