package pipeline

import (
	"context"
	"fmt"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

// cellStrategy reports per cell: cell counters, plus RRU counters exploded onto the cells
// each RRU serves, plus cell reference metadata.
type cellStrategy struct {
	jobType    report.JobType
	refAliases []string
}

func (s cellStrategy) Type() report.JobType { return s.jobType }

func (s cellStrategy) RequiredInputs() []string {
	return []string{KeyPMCell, KeyPMRRU, KeyCMRRUCell, KeyDWCellInfo}
}

func (s cellStrategy) OptionalInputs() []string { return nil }

func (s cellStrategy) Build(ctx context.Context, pc Context, src Source) (Result, error) {
	job := pc.Job()
	kind := s.jobType.Kind()
	var stats Stats

	pmCell, err := src.Table(ctx, KeyPMCell)
	if err != nil {
		return Result{}, err
	}
	primary, err := dailySlice(pc, pmCell, job.PMCellCols)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", KeyPMCell, err)
	}
	if primary, err = NormalizeColumn(primary, job.IDCol, kind); err != nil {
		return Result{}, fmt.Errorf("%s: %w", KeyPMCell, err)
	}
	stats.PrimaryRows = primary.Len()

	rruAgg, dropped, err := s.rruByCell(ctx, pc, src)
	if err != nil {
		return Result{}, err
	}
	stats.NullListRows = dropped

	merged, orphans, err := JoinAll(primary, []string{job.IDCol, ColDay}, rruAgg)
	if err != nil {
		return Result{}, err
	}
	stats.SecondaryOnlyKeys = orphans

	dw, err := src.Table(ctx, KeyDWCellInfo)
	if err != nil {
		return Result{}, err
	}
	ref, err := PrepareReference(dw, ReferenceSpec{
		IDCol:   job.IDCol,
		Aliases: s.refAliases,
		Kind:    kind,
		Columns: metadataColumns(job, ColCellName),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", KeyDWCellInfo, err)
	}
	withRef, err := AttachReference(merged, ref, job.IDCol)
	if err != nil {
		return Result{}, err
	}

	out := Finalize(withRef, job.RenameMap, job.OutputCols)
	stats.OutputRows = out.Len()
	return Result{Table: out, Stats: stats}, nil
}

// rruByCell joins RRU counters to the RRU->cell inventory on dn, explodes the cell list and
// sums the RRU metrics per (cell, day).
func (s cellStrategy) rruByCell(ctx context.Context, pc Context, src Source) (*table.Table, int, error) {
	job := pc.Job()
	pmRRU, err := src.Table(ctx, KeyPMRRU)
	if err != nil {
		return nil, 0, err
	}
	cm, err := src.Table(ctx, KeyCMRRUCell)
	if err != nil {
		return nil, 0, err
	}

	rru, err := dailySlice(pc, pmRRU, append([]string{ColDN, ColStartTime}, job.RRUAggCols...))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", KeyPMRRU, err)
	}
	inventory, err := cm.Select(ColDN, job.CellListCol)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", KeyCMRRUCell, err)
	}
	served, err := rru.Join(inventory, []string{ColDN}, table.InnerJoin, table.DefaultSuffix)
	if err != nil {
		return nil, 0, err
	}
	exploded, dropped, err := Expand(served, ExpandSpec{
		ListCol:     job.CellListCol,
		IDCol:       job.IDCol,
		Kind:        s.jobType.Kind(),
		TupleFields: job.CellListFields,
	})
	if err != nil {
		return nil, 0, err
	}
	agg, err := AggregateDaily(exploded, AggregateSpec{IDCol: job.IDCol, Metrics: job.RRUAggCols})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", KeyPMRRU, err)
	}
	return agg, dropped, nil
}
