package source

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// ColumnSummary describes one dataset column for display.
type ColumnSummary struct {
	Name    string
	Type    geoload.ColumnType
	NonNull int
	Sample  string
}

// Summary describes a dataset without its records.
type Summary struct {
	Source         string
	Format         geoload.Format
	Layer          string
	Features       int
	NullGeometries int
	GeometryType   string
	SRID           int
	Extent         orb.Bound
	HasExtent      bool
	Checksum       string
	Columns        []ColumnSummary
}

// Describe summarizes ds: per-column type, non-null count and first value,
// plus feature count and geometry extent.
func Describe(ds *geoload.Dataset) Summary {
	s := Summary{
		Source:       ds.Source,
		Format:       ds.Format,
		Layer:        ds.Layer,
		Features:     len(ds.Records),
		GeometryType: ds.GeometryType,
		SRID:         ds.SRID,
		Checksum:     ds.Checksum,
		Columns:      make([]ColumnSummary, len(ds.Columns)),
	}

	for i, c := range ds.Columns {
		s.Columns[i] = ColumnSummary{Name: c.Name, Type: c.Type}
	}

	for _, r := range ds.Records {
		if r.Geometry == nil {
			s.NullGeometries++
		} else if s.HasExtent {
			s.Extent = s.Extent.Union(r.Geometry.Bound())
		} else {
			s.Extent = r.Geometry.Bound()
			s.HasExtent = true
		}

		for i := range s.Columns {
			v := r.Values[s.Columns[i].Name]
			if v == nil {
				continue
			}
			s.Columns[i].NonNull++
			if s.Columns[i].Sample == "" {
				s.Columns[i].Sample = sample(v)
			}
		}
	}
	return s
}

func sample(v any) string {
	var s string
	switch x := v.(type) {
	case []byte:
		s = fmt.Sprintf("<%d bytes>", len(x))
	default:
		s = fmt.Sprint(x)
	}
	if r := []rune(s); len(r) > 40 {
		s = string(r[:37]) + "..."
	}
	return s
}
