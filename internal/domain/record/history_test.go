package record

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

type staticNames struct {
	hospitals  map[uuid.UUID]string
	clinicians map[uuid.UUID]string
}

func (s staticNames) HospitalName(id uuid.UUID) (string, bool) {
	n, ok := s.hospitals[id]
	return n, ok
}

func (s staticNames) ClinicianName(id uuid.UUID) (string, bool) {
	n, ok := s.clinicians[id]
	return n, ok
}

func TestFormatHistory(t *testing.T) {
	hospital, doctor := uuid.New(), uuid.New()
	treatment := "Salbutamol inhaler"
	warning := "Penicillin allergy"
	older := &ClinicalRecord{
		HospitalID: hospital, ClinicianID: doctor, EventDate: created.AddDate(0, -2, 0),
		Condition: "Asthma", Description: "Wheezing after exercise", Treatment: &treatment, RiskLevel: RiskMedium,
	}
	newer := &ClinicalRecord{
		HospitalID: hospital, ClinicianID: doctor, EventDate: created,
		Condition: "Pneumonia", Description: "Fever and cough", RiskLevel: RiskHigh, EmergencyWarning: &warning,
	}
	names := staticNames{
		hospitals:  map[uuid.UUID]string{hospital: "St. Mary"},
		clinicians: map[uuid.UUID]string{doctor: "Dr. Okafor"},
	}

	got := FormatHistory([]*ClinicalRecord{older, newer}, names)
	want := "Date: 05/10/2024\n" +
		"Hospital: St. Mary\n" +
		"Doctor: Dr. Okafor\n" +
		"Disease: Pneumonia\n" +
		"Description: Fever and cough\n" +
		"Risk Level: high\n" +
		"Warnings: Penicillin allergy\n" +
		"---\n" +
		"Date: 03/10/2024\n" +
		"Hospital: St. Mary\n" +
		"Doctor: Dr. Okafor\n" +
		"Disease: Asthma\n" +
		"Description: Wheezing after exercise\n" +
		"Treatment: Salbutamol inhaler\n" +
		"Risk Level: medium\n" +
		"---\n"
	if got != want {
		t.Errorf("unexpected history:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatHistory_WithoutResolver(t *testing.T) {
	rec := &ClinicalRecord{HospitalID: uuid.New(), ClinicianID: uuid.New(), EventDate: created, Condition: "Flu", RiskLevel: RiskLow}
	got := FormatHistory([]*ClinicalRecord{rec}, nil)
	if !strings.Contains(got, "Hospital: "+rec.HospitalID.String()) {
		t.Errorf("expected hospital id fallback, got %s", got)
	}
	if strings.Contains(got, "Treatment:") || strings.Contains(got, "Warnings:") {
		t.Errorf("expected empty optional lines to be omitted, got %s", got)
	}
}

func TestFormatHistory_Empty(t *testing.T) {
	if got := FormatHistory(nil, nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
