package strategy

import (
	"math/rand"

	"github.com/ChrisCGH/generate-synthetic-data/internal/diagnostics"
	"github.com/ChrisCGH/generate-synthetic-data/pkg/models"
	"github.com/pkg/errors"
)

// planRandom picks a random pool value for every controlled column of every
// row. A configured population rate below 1 leaves that share of a nullable
// column NULL; NOT NULL columns are always filled when a value exists.
func (p *Planner) planRandom(req Request) (*Result, error) {
	if req.Rows < 0 {
		return nil, errors.Errorf("negative row count %d for table %s", req.Rows, req.Table)
	}

	f := p.newFiller(req)
	rows := make([]models.RowAssignment, req.Rows)
	for i := range rows {
		rows[i] = make(models.RowAssignment)
		f.fill(rows[i])
	}

	return &Result{Rows: rows}, nil
}

// completeRows returns copies of rows in which every controlled column the
// plan left out is picked the same way planRandom picks it. Assigned keys,
// NULLs included, are kept as they are.
func (p *Planner) completeRows(req Request, rows []models.RowAssignment) []models.RowAssignment {
	f := p.newFiller(req)
	out := make([]models.RowAssignment, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
		f.fill(out[i])
	}
	return out
}

// filler draws controlled-column values for one table pass
type filler struct {
	p      *Planner
	req    Request
	rng    *rand.Rand
	warned map[string]bool
}

func (p *Planner) newFiller(req Request) *filler {
	return &filler{
		p:      p,
		req:    req,
		rng:    rand.New(rand.NewSource(req.Seed)),
		warned: make(map[string]bool),
	}
}

func (f *filler) fill(row models.RowAssignment) {
	for _, column := range f.req.Columns {
		if _, ok := row[column.Name]; ok {
			continue
		}
		pool, ok := f.req.Pools.Pool(column.Name)
		if !ok {
			continue
		}

		if column.IsNullable {
			if rate, ok := f.req.PopulationRates[column.Name]; ok && rate < 1.0 && f.rng.Float64() >= rate {
				row[column.Name] = nil
				continue
			}
		}

		if pool.Len() == 0 {
			if column.IsNullable {
				row[column.Name] = nil
			} else if !f.warned[column.Name] {
				f.warned[column.Name] = true
				f.p.sink().Emit(diagnostics.Event{
					Kind:     diagnostics.MissingParentValues,
					Severity: diagnostics.Warning,
					Table:    f.req.Table,
					Fields:   map[string]interface{}{"column": column.Name},
				})
			}
			continue
		}

		row[column.Name] = pool.At(f.rng.Intn(pool.Len()))
	}
}
