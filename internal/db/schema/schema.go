// Package schema checks at startup that the live database carries the tables
// and columns the typed records declare, and describes those tables.
package schema

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"
)

var (
	ErrTableMissing  = errors.New("table missing")
	ErrColumnMissing = errors.New("column missing")
)

// Table binds a record type to the name of the table that stores it.
type Table struct {
	Name  string
	Model any
}

// Descriptor is the validated shape of one table.
type Descriptor struct {
	Table string
	// Columns lists the declared columns in record field order.
	Columns []string
	// Extra lists live columns the record does not declare; they are never read.
	Extra []string

	schema *gormschema.Schema
}

// Validate checks every table and returns one descriptor per table, in
// argument order. All mismatches are reported together.
func Validate(ctx context.Context, gdb *gorm.DB, tables ...Table) ([]Descriptor, error) {
	tx := gdb.WithContext(ctx)
	cache := &sync.Map{}

	out := make([]Descriptor, 0, len(tables))
	var errs []error
	for _, t := range tables {
		d, err := describe(tx, cache, t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, d)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func describe(tx *gorm.DB, cache *sync.Map, t Table) (Descriptor, error) {
	sch, err := gormschema.Parse(t.Model, cache, tx.NamingStrategy)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse record for %s: %w", t.Name, err)
	}

	m := tx.Migrator()
	if !m.HasTable(t.Name) {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrTableMissing, t.Name)
	}
	columnTypes, err := m.ColumnTypes(t.Name)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read columns of %s: %w", t.Name, err)
	}

	declared := make(map[string]bool, len(sch.DBNames))
	for _, name := range sch.DBNames {
		declared[strings.ToLower(name)] = true
	}
	live := make(map[string]bool, len(columnTypes))
	var extra []string
	for _, ct := range columnTypes {
		name := strings.ToLower(ct.Name())
		live[name] = true
		if !declared[name] {
			extra = append(extra, ct.Name())
		}
	}

	var missing []string
	for _, name := range sch.DBNames {
		if !live[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Descriptor{}, fmt.Errorf("%w: %s(%s)", ErrColumnMissing, t.Name, strings.Join(missing, ", "))
	}

	columns := make([]string, len(sch.DBNames))
	copy(columns, sch.DBNames)
	return Descriptor{Table: t.Name, Columns: columns, Extra: extra, schema: sch}, nil
}

// Value reads column off row, which must be a record of the described type
// (or a pointer to one). Nullable columns yield nil. Handlers encode records
// through their json tags; Value and Row give the column view those tags
// must agree with, and the router tests compare the two.
func (d Descriptor) Value(ctx context.Context, row any, column string) (any, bool) {
	if d.schema == nil {
		return nil, false
	}
	field := d.schema.LookUpField(column)
	if field == nil || field.DBName == "" {
		return nil, false
	}

	rv := reflect.ValueOf(row)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Type() != d.schema.ModelType {
		return nil, false
	}

	v, _ := field.ValueOf(ctx, rv)
	fv := reflect.ValueOf(v)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil, true
		}
		return fv.Elem().Interface(), true
	}
	return v, true
}

// Row returns the column -> value mapping of row.
func (d Descriptor) Row(ctx context.Context, row any) map[string]any {
	out := make(map[string]any, len(d.Columns))
	for _, c := range d.Columns {
		if v, ok := d.Value(ctx, row, c); ok {
			out[c] = v
		}
	}
	return out
}
