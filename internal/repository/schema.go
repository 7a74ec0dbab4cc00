package repository

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	sqlschema "entgo.io/ent/dialect/sql/schema"

	entschema "github.com/joseph-ayodele/order-transformer/db/ent/schema"
)

const (
	mappingTable    = "identifier_mappings"
	conversionTable = "conversion_history"
)

// Tables builds the SQL tables from the ent schema definitions.
func Tables() ([]*sqlschema.Table, error) {
	defs := []ent.Interface{entschema.IdentifierMapping{}, entschema.ConversionHistory{}}
	tables := make([]*sqlschema.Table, 0, len(defs))
	for _, d := range defs {
		t, err := tableFor(d)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func tableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		switch ann := a.(type) {
		case entsql.Annotation:
			if ann.Table != "" {
				return ann.Table
			}
		case *entsql.Annotation:
			if ann != nil && ann.Table != "" {
				return ann.Table
			}
		}
	}
	return ""
}

func tableFor(s ent.Interface) (*sqlschema.Table, error) {
	name := tableName(s)
	if name == "" {
		return nil, fmt.Errorf("schema %T has no table annotation", s)
	}
	t := sqlschema.NewTable(name)
	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		c := &sqlschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Nullable:   d.Optional || d.Nillable,
			Unique:     d.Unique,
			SchemaType: d.SchemaType,
		}
		if d.StorageKey != "" {
			c.Name = d.StorageKey
		}
		switch v := d.Default.(type) {
		case int, int64, bool, string:
			c.Default = v
		}
		if c.Name == "id" {
			c.Increment = true
			t.AddPrimary(c)
			continue
		}
		t.AddColumn(c)
	}
	for _, ix := range s.Indexes() {
		d := ix.Descriptor()
		ixName := d.StorageKey
		if ixName == "" {
			ixName = name + "_" + strings.Join(d.Fields, "_")
		}
		t.AddIndex(ixName, d.Unique, d.Fields)
	}
	return t, nil
}

// Migrate creates or updates the tables.
func (db *DB) Migrate(ctx context.Context) error {
	tables, err := Tables()
	if err != nil {
		return err
	}
	m, err := sqlschema.NewMigrate(db.drv)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
