package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"climate-server/internal/config"
	"climate-server/internal/modules/climate/types"
)

var ErrNotFound = errors.New("not found")

type ClimateRepository interface {
	ListMeasurements() ([]types.Measurement, error)
	GetMeasurement(id int64) (types.Measurement, error)
	ListStations() ([]types.Station, error)
	GetStation(id int64) (types.Station, error)
	// Precipitation returns (date, prcp) for every measurement on or after cutoff, in table order.
	Precipitation(cutoff string) ([]types.DatedValue, error)
	// TemperatureObservations returns (date, tobs) for station on or after cutoff, in table order.
	TemperatureObservations(station string, cutoff string) ([]types.DatedValue, error)
	// TemperatureStats aggregates tobs over date >= start, and date <= *end when end is set.
	TemperatureStats(start string, end *string) (types.TemperatureStats, error)
}

type repositoryImpl struct {
	db     *gorm.DB
	tables config.Tables
}

// NewRepository queries through gdb, normally a request session.
func NewRepository(gdb *gorm.DB, tables config.Tables) ClimateRepository {
	return &repositoryImpl{db: gdb, tables: tables}
}

func (r *repositoryImpl) measurements() *gorm.DB {
	return r.db.Table(r.tables.Measurement)
}

func (r *repositoryImpl) stations() *gorm.DB {
	return r.db.Table(r.tables.Station)
}

func (r *repositoryImpl) ListMeasurements() ([]types.Measurement, error) {
	out := []types.Measurement{}
	if err := r.measurements().Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetMeasurement(id int64) (types.Measurement, error) {
	var m types.Measurement
	if err := r.measurements().Where("id = ?", id).Take(&m).Error; err != nil {
		return types.Measurement{}, lookupErr("measurement", id, err)
	}
	return m, nil
}

func (r *repositoryImpl) ListStations() ([]types.Station, error) {
	out := []types.Station{}
	if err := r.stations().Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return out, nil
}

func (r *repositoryImpl) GetStation(id int64) (types.Station, error) {
	var s types.Station
	if err := r.stations().Where("id = ?", id).Take(&s).Error; err != nil {
		return types.Station{}, lookupErr("station", id, err)
	}
	return s, nil
}

func (r *repositoryImpl) Precipitation(cutoff string) ([]types.DatedValue, error) {
	out := []types.DatedValue{}
	err := r.measurements().
		Select("date, prcp AS value").
		Where("date >= ?", cutoff).
		Order("id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("precipitation since %s: %w", cutoff, err)
	}
	return out, nil
}

func (r *repositoryImpl) TemperatureObservations(station string, cutoff string) ([]types.DatedValue, error) {
	out := []types.DatedValue{}
	err := r.measurements().
		Select("date, tobs AS value").
		Where("station = ? AND date >= ?", station, cutoff).
		Order("id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("tobs for %s since %s: %w", station, cutoff, err)
	}
	return out, nil
}

func (r *repositoryImpl) TemperatureStats(start string, end *string) (types.TemperatureStats, error) {
	q := r.measurements().
		Select("MIN(tobs) AS tmin, AVG(tobs) AS tavg, MAX(tobs) AS tmax").
		Where("date >= ?", start)
	if end != nil {
		q = q.Where("date <= ?", *end)
	}

	var stats types.TemperatureStats
	if err := q.Scan(&stats).Error; err != nil {
		return types.TemperatureStats{}, fmt.Errorf("temperature stats from %s: %w", start, err)
	}
	return stats, nil
}

func lookupErr(kind string, id int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", kind, id, err)
}
