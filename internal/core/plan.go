package core

import "slices"

// PlanAction is what the executor will do with one row.
type PlanAction string

const (
	ActionCreate PlanAction = "CREATE"
	ActionUpdate PlanAction = "UPDATE"
	ActionSkip   PlanAction = "SKIP"
)

// PlannedRow is one resolved row ready for execution.
type PlannedRow struct {
	RowIndex   int            `json:"rowIndex"`
	Action     PlanAction     `json:"action"`
	ElementID  string         `json:"elementId,omitempty"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

// ExecutionPlan is the input of the batch executor. Rejected holds the
// INVALID records; they are never written but are reported and counted.
type ExecutionPlan struct {
	Rows     []PlannedRow   `json:"rows"`
	Rejected []ImportRecord `json:"rejected"`
}

// TotalRecords is the number of rows the batch accounts for.
func (p ExecutionPlan) TotalRecords() int { return len(p.Rows) + len(p.Rejected) }

// BuildPlan resolves records into an execution plan. Valid records without
// a duplicate match are created; matched records follow their strategy.
// res may be nil when no duplicates were detected.
func BuildPlan(records []ImportRecord, res *Resolution) ExecutionPlan {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b ImportRecord) int { return a.RowIndex - b.RowIndex })

	plan := ExecutionPlan{Rows: []PlannedRow{}, Rejected: []ImportRecord{}}
	for _, rec := range sorted {
		if rec.Status != StatusValid {
			plan.Rejected = append(plan.Rejected, rec)
			continue
		}

		row := PlannedRow{
			RowIndex:   rec.RowIndex,
			Action:     ActionCreate,
			Name:       rec.Normalized.Text(KeyName),
			Attributes: rec.Normalized.Attributes(),
		}
		if res != nil {
			if m, ok := res.Match(rec.RowIndex); ok {
				switch m.Strategy {
				case StrategySkip:
					row.Action = ActionSkip
					row.ElementID = m.ExistingElementID
				case StrategyCreateNew:
					row.Action = ActionCreate
				default:
					row.Action = ActionUpdate
					row.ElementID = m.ExistingElementID
				}
			}
		}
		plan.Rows = append(plan.Rows, row)
	}
	return plan
}
