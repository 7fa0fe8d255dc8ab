package record

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const historyDateLayout = "01/02/2006"

// NameResolver turns hospital and clinician ids into display names. Ids are
// printed as-is when no resolver is supplied or a name is unknown.
type NameResolver interface {
	HospitalName(id uuid.UUID) (string, bool)
	ClinicianName(id uuid.UUID) (string, bool)
}

// FormatHistory renders records newest first in the block format read by the
// summarizer service. Blocks are separated by a "---" line.
func FormatHistory(records []*ClinicalRecord, names NameResolver) string {
	sorted := make([]*ClinicalRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EventDate.After(sorted[j].EventDate) })

	var b strings.Builder
	for _, r := range sorted {
		line(&b, "Date", r.EventDate.Format(historyDateLayout))
		line(&b, "Hospital", hospitalRef(names, r.HospitalID))
		line(&b, "Doctor", clinicianRef(names, r.ClinicianID))
		line(&b, "Disease", r.Condition)
		line(&b, "Description", r.Description)
		if r.Treatment != nil && *r.Treatment != "" {
			line(&b, "Treatment", *r.Treatment)
		}
		line(&b, "Risk Level", string(r.RiskLevel))
		if r.EmergencyWarning != nil && *r.EmergencyWarning != "" {
			line(&b, "Warnings", *r.EmergencyWarning)
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func line(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func hospitalRef(names NameResolver, id uuid.UUID) string {
	if names != nil {
		if n, ok := names.HospitalName(id); ok {
			return n
		}
	}
	return id.String()
}

func clinicianRef(names NameResolver, id uuid.UUID) string {
	if names != nil {
		if n, ok := names.ClinicianName(id); ok {
			return n
		}
	}
	return id.String()
}
