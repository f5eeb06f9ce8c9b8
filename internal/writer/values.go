package writer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// textValue renders v in the text form PostgreSQL accepts for a cast from
// text. nil stays nil so the column receives NULL.
func textValue(v any, ct geoload.ColumnType) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		if ct == geoload.ColumnTypeDate {
			return v.Format("2006-01-02"), nil
		}
		return v.Format(time.RFC3339Nano), nil
	case []byte:
		return `\x` + hex.EncodeToString(v), nil
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// geometryValue encodes g as EWKB carrying srid. A nil geometry stays nil.
func geometryValue(g orb.Geometry, srid int) (any, error) {
	if g == nil {
		return nil, nil
	}
	return ewkb.Marshal(g, srid)
}

// recordArgs returns the INSERT parameters for record i in insertSQL order.
func recordArgs(plan *geoload.LoadPlan, types map[string]geoload.ColumnType, rec geoload.Record, i int) ([]any, error) {
	args := make([]any, 0, len(plan.Columns)+2)

	for _, c := range plan.Columns {
		v, err := textValue(rec.Values[c.Column], types[c.Column])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Column, err)
		}
		args = append(args, v)
	}

	g, err := geometryValue(rec.Geometry, plan.SourceSRID)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	args = append(args, g)

	if plan.GeneratedIDColumn != "" {
		args = append(args, int64(i+1))
	}
	return args, nil
}
