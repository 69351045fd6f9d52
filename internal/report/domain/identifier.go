package report

import (
	"regexp"
	"strings"
)

const (
	// PLMNPrefixDashed is the dashed MCC-MNC token carried by 4G identifiers.
	PLMNPrefixDashed = "460-00-"
	// PLMNPrefixCompact is the compact MCC-MNC token carried by 5G cell identifiers.
	PLMNPrefixCompact = "46000-"
)

var integralFloatRE = regexp.MustCompile(`^(-?\d+)\.0+$`)

// IDKind selects the canonicalization rule for an identifier.
type IDKind struct {
	Technology  Technology
	Granularity Granularity
}

// Kind returns the identifier kind of the job's reporting entity.
func (t JobType) Kind() IDKind {
	return IDKind{Technology: t.Technology(), Granularity: t.Granularity()}
}

// StationKind returns the station identifier kind for the job's technology.
func (t JobType) StationKind() IDKind {
	return IDKind{Technology: t.Technology(), Granularity: GranularityStation}
}

// CanonicalID returns the single text form of raw used for every cross-table join.
//
// 4G identifiers lose a leading 460-00- token, 5G cell identifiers have 46000- rewritten to 460-00-,
// 5G station identifiers keep their prefix. Applying CanonicalID twice is a no-op.
func CanonicalID(raw string, kind IDKind) string {
	id := strings.TrimSpace(raw)
	switch {
	case kind.Technology == Technology4G:
		for strings.HasPrefix(id, PLMNPrefixDashed) {
			id = strings.TrimSpace(strings.TrimPrefix(id, PLMNPrefixDashed))
		}
	case kind.Technology == Technology5G && kind.Granularity == GranularityCell:
		id = strings.ReplaceAll(id, PLMNPrefixCompact, PLMNPrefixDashed)
	}
	// numeric ids read back from float columns: 123.0 -> 123
	if m := integralFloatRE.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	return id
}
