package lab

import "testing"

func TestAggregate(t *testing.T) {
	normal := Measurement{TestName: "a"}
	low := Measurement{TestName: "b", Abnormal: true, Severity: SeverityLow}
	high := Measurement{TestName: "c", Abnormal: true, Severity: SeverityHigh}
	critical := Measurement{TestName: "d", Abnormal: true, Severity: SeverityCritical}

	tests := []struct {
		name string
		ms   []Measurement
		want PanelStatus
	}{
		{"empty", nil, StatusNormal},
		{"all normal", []Measurement{normal, normal}, StatusNormal},
		{"one low", []Measurement{normal, low}, StatusAbnormal},
		{"low and high", []Measurement{high, low}, StatusAbnormal},
		{"absent low critical", []Measurement{normal, low, critical}, StatusCritical},
		{"critical first", []Measurement{critical, normal}, StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.ms); got != tt.want {
				t.Errorf("Aggregate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	ms := []Measurement{
		{Abnormal: true, Severity: SeverityHigh},
		{},
		{Abnormal: true, Severity: SeverityCritical},
		{Abnormal: true, Severity: SeverityLow},
	}
	want := Aggregate(ms)
	for i := range ms {
		rotated := append(append([]Measurement{}, ms[i:]...), ms[:i]...)
		if got := Aggregate(rotated); got != want {
			t.Errorf("rotation %d: got %q, want %q", i, got, want)
		}
	}
}
