package openapi

import "net/http"

var pageQuery = []QueryParam{
	{Name: "limit", Type: "integer", Detail: "page size, at most 100"},
	{Name: "offset", Type: "integer", Detail: "items to skip"},
	{Name: "page", Type: "integer", Detail: "1-based page, used when offset is absent"},
}

// DefaultOperations documents the record, lab and auth routes.
func DefaultOperations() map[string]Operation {
	const v1 = "/api/v1"
	ops := map[string]Operation{
		opKey(http.MethodPost, v1+"/records"): {
			Summary: "Create a clinical record", Tag: "records",
			RequestBody: "RecordDraft", Response: "ClinicalRecord", Status: http.StatusCreated,
			Errors: []int{http.StatusBadRequest},
		},
		opKey(http.MethodGet, v1+"/records/:id"): {
			Summary: "Read a clinical record", Tag: "records", Response: "ClinicalRecord",
			Errors: []int{http.StatusNotFound},
		},
		opKey(http.MethodPut, v1+"/records/:id"): {
			Summary: "Update a record inside its edit window", Tag: "records",
			RequestBody: "RecordDraft", Response: "ClinicalRecord",
			Errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusLocked},
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/records"): {
			Summary: "List a patient's records, newest event first", Tag: "records",
			Response: "Page", Query: pageQuery,
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/risk-progression"): {
			Summary: "Risk progression across a patient's records", Tag: "records", Response: "RiskProgression",
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/risk-predictions"): {
			Summary: "Predicted condition risks from a patient's records", Tag: "records", Response: "RiskPrediction",
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/summary"): {
			Summary: "Free-text summary of a patient's history", Tag: "records", Response: "PatientSummary",
			Query:  []QueryParam{{Name: "emergency", Type: "boolean", Detail: "emergency-focused summary"}},
			Errors: []int{http.StatusServiceUnavailable},
		},
		opKey(http.MethodPost, v1+"/lab-panels"): {
			Summary: "Submit a lab panel", Tag: "labs",
			RequestBody: "LabSubmission", Response: "LabPanel", Status: http.StatusCreated,
			Errors: []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
		},
		opKey(http.MethodGet, v1+"/lab-panels/:id"): {
			Summary: "Read a lab panel", Tag: "labs", Response: "LabPanel",
			Errors: []int{http.StatusNotFound},
		},
		opKey(http.MethodPut, v1+"/lab-panels/:id"): {
			Summary: "Replace a whole lab panel", Tag: "labs",
			RequestBody: "LabSubmission", Response: "LabPanel",
			Errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/lab-panels"): {
			Summary: "List a patient's lab panels", Tag: "labs", Response: "Page", Query: pageQuery,
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/lab-trends/:testName"): {
			Summary: "Trend of one analyte across panels", Tag: "labs", Response: "TrendReport",
		},
		opKey(http.MethodGet, v1+"/patients/:patientId/lab-tests"): {
			Summary: "Distinct analytes with result counts", Tag: "labs",
		},
		opKey(http.MethodGet, v1+"/reference-ranges"): {
			Summary: "Loaded reference range table", Tag: "labs",
		},
		opKey(http.MethodPost, v1+"/auth/revoke"): {
			Summary: "Revoke a token by jti", Tag: "auth", Errors: []int{http.StatusBadRequest},
		},
	}
	return ops
}

func obj(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(format string) map[string]interface{} {
	s := map[string]interface{}{"type": "string"}
	if format != "" {
		s["format"] = format
	}
	return s
}

func enum(values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "enum": values}
}

func num() map[string]interface{} { return map[string]interface{}{"type": "number"} }

func array(items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": items}
}

func componentSchemas() map[string]interface{} {
	risk := enum("low", "medium", "high", "critical")
	attachment := obj([]string{"location"}, map[string]interface{}{
		"type": str(""), "location": str(""), "name": str(""),
	})
	rangeSchema := obj([]string{"min", "max"}, map[string]interface{}{"min": num(), "max": num()})

	return map[string]interface{}{
		"Error": obj([]string{"code", "message"}, map[string]interface{}{
			"code":           str(""),
			"message":        str(""),
			"editable_until": str("date-time"),
			"test_name":      str(""),
		}),
		"RecordDraft": obj([]string{"patient_id", "event_date", "condition", "description", "risk_level"}, map[string]interface{}{
			"patient_id":        str("uuid"),
			"clinician_id":      str("uuid"),
			"event_date":        str("date-time"),
			"condition":         str(""),
			"description":       str(""),
			"treatment":         str(""),
			"risk_level":        risk,
			"emergency_warning": str(""),
			"attachments":       array(attachment),
		}),
		"ClinicalRecord": obj(nil, map[string]interface{}{
			"id":                str("uuid"),
			"patient_id":        str("uuid"),
			"hospital_id":       str("uuid"),
			"clinician_id":      str("uuid"),
			"event_date":        str("date-time"),
			"condition":         str(""),
			"description":       str(""),
			"treatment":         str(""),
			"risk_level":        risk,
			"emergency_warning": str(""),
			"attachments":       array(attachment),
			"editable":          map[string]interface{}{"type": "boolean"},
			"editable_until":    str("date-time"),
			"created_at":        str("date-time"),
			"updated_at":        str("date-time"),
		}),
		"RiskProgression": obj(nil, map[string]interface{}{
			"score":              num(),
			"trend":              enum("improving", "stable", "worsening"),
			"records_considered": map[string]interface{}{"type": "integer"},
			"recurring_conditions": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": map[string]interface{}{"type": "integer"},
			},
		}),
		"RiskPrediction": obj(nil, map[string]interface{}{
			"predictions": array(obj(nil, map[string]interface{}{
				"condition":       str(""),
				"risk_score":      num(),
				"risk_level":      risk,
				"confidence":      num(),
				"factors":         array(str("")),
				"recommendations": array(str("")),
			})),
			"overall_health_score": num(),
			"comorbidity_score":    num(),
			"trend":                enum("improving", "stable", "worsening"),
			"records_considered":   map[string]interface{}{"type": "integer"},
		}),
		"PatientSummary": obj(nil, map[string]interface{}{
			"patient_id": str("uuid"),
			"emergency":  map[string]interface{}{"type": "boolean"},
			"records":    map[string]interface{}{"type": "integer"},
			"summary":    str(""),
		}),
		"LabSubmission": obj([]string{"patient_id", "panel_type", "ordered_by", "lab_name", "test_date"}, map[string]interface{}{
			"patient_id": str("uuid"),
			"record_id":  str("uuid"),
			"panel_type": str(""),
			"ordered_by": str(""),
			"lab_name":   str(""),
			"test_date":  str("date-time"),
			"notes":      str(""),
			"measurements": array(obj([]string{"test_name", "value"}, map[string]interface{}{
				"test_name": str(""), "value": num(), "unit": str(""), "range": rangeSchema, "note": str(""),
			})),
		}),
		"LabPanel": obj(nil, map[string]interface{}{
			"id":             str("uuid"),
			"patient_id":     str("uuid"),
			"record_id":      str("uuid"),
			"test_date":      str("date-time"),
			"panel_type":     str(""),
			"ordered_by":     str(""),
			"lab_name":       str(""),
			"overall_status": enum("normal", "abnormal", "critical"),
			"notes":          str(""),
			"measurements": array(obj(nil, map[string]interface{}{
				"test_name": str(""), "value": num(), "unit": str(""), "range": rangeSchema,
				"abnormal": map[string]interface{}{"type": "boolean"},
				"severity": enum("low", "high", "critical"),
				"note":     str(""),
			})),
		}),
		"TrendReport": obj(nil, map[string]interface{}{
			"patient_id":         str("uuid"),
			"test_name":          str(""),
			"unit":               str(""),
			"trend":              enum("improving", "stable", "worsening"),
			"baseline_deviation": num(),
			"latest_deviation":   num(),
			"points":             map[string]interface{}{"type": "integer"},
		}),
		"Page": obj(nil, map[string]interface{}{
			"data":     array(map[string]interface{}{"type": "object"}),
			"total":    map[string]interface{}{"type": "integer"},
			"limit":    map[string]interface{}{"type": "integer"},
			"offset":   map[string]interface{}{"type": "integer"},
			"has_more": map[string]interface{}{"type": "boolean"},
		}),
	}
}
