package types

// Station is a row of the station metadata table.
type Station struct {
	ID        int64    `json:"id" gorm:"column:id;primaryKey"`
	Station   *string  `json:"station" gorm:"column:station"`
	Name      *string  `json:"name" gorm:"column:name"`
	Latitude  *float64 `json:"latitude" gorm:"column:latitude"`
	Longitude *float64 `json:"longitude" gorm:"column:longitude"`
	Elevation *float64 `json:"elevation" gorm:"column:elevation"`
}

// Measurement is one daily observation reported by a station.
// Date is stored as YYYY-MM-DD text. Every column but id may be NULL.
type Measurement struct {
	ID      int64    `json:"id" gorm:"column:id;primaryKey"`
	Station *string  `json:"station" gorm:"column:station"`
	Date    *string  `json:"date" gorm:"column:date"`
	Prcp    *float64 `json:"prcp" gorm:"column:prcp"`
	Tobs    *float64 `json:"tobs" gorm:"column:tobs"`
}

type DatedValue struct {
	Date  string   `gorm:"column:date"`
	Value *float64 `gorm:"column:value"`
}

type TemperatureStats struct {
	Min *float64 `gorm:"column:tmin"`
	Avg *float64 `gorm:"column:tavg"`
	Max *float64 `gorm:"column:tmax"`
}

// List returns the stats in [min, avg, max] order; missing values stay nil.
func (s TemperatureStats) List() []*float64 {
	return []*float64{s.Min, s.Avg, s.Max}
}
