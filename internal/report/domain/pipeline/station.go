package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/samber/lo"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

const defaultRRUMetric = "ee_rrumeanpower"

// stationStrategy reports per network element: NE counters, BBU sums, RRU sums attributed
// through the dn prefix, the per-RRU summary, plus station metadata derived from cell references.
type stationStrategy struct {
	jobType    report.JobType
	owner      OwnerSpec
	refAliases []string
	nameCol    string
	bbuPack    bool
}

func (s stationStrategy) Type() report.JobType { return s.jobType }

func (s stationStrategy) RequiredInputs() []string {
	return []string{KeyPMNE, KeyPMBBU, KeyPMRRU, KeyCMFunction, KeyDWStationInfo}
}

func (s stationStrategy) OptionalInputs() []string {
	if s.bbuPack {
		return []string{KeyPMBBUPack}
	}
	return nil
}

func (s stationStrategy) Build(ctx context.Context, pc Context, src Source) (Result, error) {
	job := pc.Job()
	ownerCol := s.owner.OwnerCol
	keys := []string{ownerCol, ColDay}
	var stats Stats

	ne, err := s.dailyOwned(ctx, pc, src, KeyPMNE, job.NECols)
	if err != nil {
		return Result{}, err
	}
	stats.PrimaryRows = ne.Len()

	bbu, err := s.dailySum(ctx, pc, src, KeyPMBBU, job.BBUCols)
	if err != nil {
		return Result{}, err
	}
	if s.bbuPack && src.Declared(KeyPMBBUPack) {
		pack, err := s.dailySum(ctx, pc, src, KeyPMBBUPack, job.BBUPackCols)
		if err != nil {
			return Result{}, err
		}
		if bbu, err = bbu.Join(pack, keys, table.LeftJoin, table.DefaultSuffix); err != nil {
			return Result{}, err
		}
	}

	rruAgg, rruList, unmapped, err := s.rruByStation(ctx, pc, src)
	if err != nil {
		return Result{}, err
	}
	stats.UnmappedRRURows = unmapped

	merged, orphans, err := JoinAll(ne, keys, bbu, rruAgg, rruList)
	if err != nil {
		return Result{}, err
	}
	stats.SecondaryOnlyKeys = orphans
	if ownerCol != job.IDCol {
		merged = merged.Rename(map[string]string{ownerCol: job.IDCol})
	}

	dw, err := src.Table(ctx, KeyDWStationInfo)
	if err != nil {
		return Result{}, err
	}
	ref, err := PrepareReference(dw, ReferenceSpec{
		IDCol:   job.IDCol,
		Aliases: append(slices.Clone(s.refAliases), ownerCol),
		Kind:    s.owner.Kind,
		NameCol: s.nameCol,
		Columns: metadataColumns(job, s.nameCol),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", KeyDWStationInfo, err)
	}
	withRef, err := AttachReference(merged, ref, job.IDCol)
	if err != nil {
		return Result{}, err
	}

	out := Finalize(withRef, job.RenameMap, job.OutputCols)
	stats.OutputRows = out.Len()
	return Result{Table: out, Stats: stats}, nil
}

// dailyOwned loads key, keeps the target day and canonicalizes the owner column.
func (s stationStrategy) dailyOwned(ctx context.Context, pc Context, src Source, key string, cols []string) (*table.Table, error) {
	raw, err := src.Table(ctx, key)
	if err != nil {
		return nil, err
	}
	daily, err := dailySlice(pc, raw, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	owned, err := NormalizeColumn(daily, s.owner.OwnerCol, s.owner.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return owned, nil
}

// dailySum sums every non-key column of cols per (owner, day).
func (s stationStrategy) dailySum(ctx context.Context, pc Context, src Source, key string, cols []string) (*table.Table, error) {
	owned, err := s.dailyOwned(ctx, pc, src, key, cols)
	if err != nil {
		return nil, err
	}
	metrics := lo.Without(owned.Columns(), ColStartTime, ColDay, s.owner.OwnerCol)
	agg, err := AggregateDaily(owned, AggregateSpec{IDCol: s.owner.OwnerCol, Metrics: metrics})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return agg, nil
}

// rruByStation maps RRU rows to their station, then returns the per-station sums, the
// per-RRU summary and the number of RRU rows without an owner.
func (s stationStrategy) rruByStation(ctx context.Context, pc Context, src Source) (*table.Table, *table.Table, int, error) {
	job := pc.Job()
	pmRRU, err := src.Table(ctx, KeyPMRRU)
	if err != nil {
		return nil, nil, 0, err
	}
	functions, err := src.Table(ctx, KeyCMFunction)
	if err != nil {
		return nil, nil, 0, err
	}
	rru, err := dailySlice(pc, pmRRU, job.RRUCols)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", KeyPMRRU, err)
	}
	if len(job.FunctionCols) > 0 {
		if functions, err = functions.Select(job.FunctionCols...); err != nil {
			return nil, nil, 0, fmt.Errorf("%s: %w", KeyCMFunction, err)
		}
	}
	mapped, unmapped, err := MapToOwner(rru, functions, s.owner)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", KeyCMFunction, err)
	}
	mapped = mapped.DropNull(s.owner.OwnerCol)

	listMetric := job.RRUListCol
	if listMetric == "" {
		listMetric = defaultRRUMetric
	}
	aggMetrics := job.RRUAggCols
	if len(aggMetrics) == 0 {
		aggMetrics = []string{listMetric}
	}

	list, err := BuildSummary(mapped, SummarySpec{
		IDCol:    s.owner.OwnerCol,
		KeyCol:   ColRRUKey,
		ValueCol: listMetric,
		OutCol:   listMetric + ListSuffix,
	})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", KeyPMRRU, err)
	}
	agg, err := AggregateDaily(mapped, AggregateSpec{IDCol: s.owner.OwnerCol, Metrics: aggMetrics})
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", KeyPMRRU, err)
	}
	return agg, list, unmapped, nil
}
