package pipeline

import (
	"context"

	report "energy-report/internal/report/domain"
)

// Strategy builds the report of one technology x granularity combination.
type Strategy interface {
	Type() report.JobType
	// RequiredInputs lists the input keys the job must declare.
	RequiredInputs() []string
	// OptionalInputs lists input keys used only when declared.
	OptionalInputs() []string
	Build(ctx context.Context, pc Context, src Source) (Result, error)
}

var strategies = map[report.JobType]Strategy{
	report.JobTypeCell4G: cellStrategy{
		jobType: report.JobTypeCell4G,
	},
	report.JobTypeCell5G: cellStrategy{
		jobType:    report.JobTypeCell5G,
		refAliases: []string{"cgi"},
	},
	report.JobTypeStation4G: stationStrategy{
		jobType:    report.JobTypeStation4G,
		owner:      OwnerSpecFor(report.Technology4G),
		refAliases: []string{"enodeb_id", "enb_id", "enbid"},
		nameCol:    "enodeb_name",
	},
	report.JobTypeStation5G: stationStrategy{
		jobType:    report.JobTypeStation5G,
		owner:      OwnerSpecFor(report.Technology5G),
		refAliases: []string{"gnodeb_id", "gnb_id"},
		nameCol:    "gnbduname",
		bbuPack:    true,
	},
}

// StrategyFor returns the strategy of t, or *report.UnknownJobTypeError.
func StrategyFor(t report.JobType) (Strategy, error) {
	s, ok := strategies[t]
	if !ok {
		return nil, &report.UnknownJobTypeError{Type: string(t)}
	}
	return s, nil
}

func metadataColumns(job report.JobConfig, nameCol string) []string {
	if len(job.MetadataCols) > 0 {
		return job.MetadataCols
	}
	return []string{nameCol, ColVendor, ColCity}
}
