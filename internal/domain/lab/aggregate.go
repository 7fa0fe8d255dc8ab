package lab

// Aggregate reduces measurements to the worst panel status. An empty panel
// is normal.
func Aggregate(ms []Measurement) PanelStatus {
	status := StatusNormal
	for _, m := range ms {
		if m.Severity == SeverityCritical {
			return StatusCritical
		}
		if m.Abnormal {
			status = StatusAbnormal
		}
	}
	return status
}
