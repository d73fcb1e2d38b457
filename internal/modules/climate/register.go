package climate

import (
	"net/http"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/db/schema"
	"climate-server/internal/httpapi"
	"climate-server/internal/modules/climate/controller"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
)

// Tables binds the record types to the configured table names.
func Tables(names config.Tables) []schema.Table {
	return []schema.Table{
		{Name: names.Station, Model: &types.Station{}},
		{Name: names.Measurement, Model: &types.Measurement{}},
	}
}

func RegisterFeature(mux *http.ServeMux, sessions httpapi.SessionAcquirer, cfg config.Config, descriptors []schema.Descriptor) {
	newRepository := func(sess *db.Session) repository.ClimateRepository {
		return repository.NewRepository(sess.DB, cfg.Tables)
	}

	tables := make([]views.TableInfo, 0, len(descriptors))
	for _, d := range descriptors {
		tables = append(tables, views.TableInfo{Name: d.Table, Columns: d.Columns})
	}

	climateController := controller.NewClimateController(sessions, newRepository, cfg.Queries, tables)
	climateController.RegisterRoutes(mux)
}
