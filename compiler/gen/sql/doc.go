// Package sql renders the table graph as SQL.
//
// The Target writes the create script, the view script, the metadata
// inserts and any user templates. The PlanTarget diffs the tables against
// the snapshot stored by its previous run and writes an incremental
// migration planned by Atlas for the selected dialect:
//
//	plan, err := sql.NewPlan(sql.PlanProfile("postgresql2"))
//	if err != nil {
//		return err
//	}
//	err = gen.Run(ctx, g, plan)
//
// Changes that drop data or tighten nullability are refused unless allowed
// with PlanAllow.
package sql
