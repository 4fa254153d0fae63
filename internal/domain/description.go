package domain

import "strings"

// Field identifies one labelled line of a ticket description.
type Field int

const (
	FieldEHRName Field = iota
	FieldHospitalName
	FieldPatientID
	FieldConsultationDate
	FieldAcquisitionTime
)

// UnknownValue is rendered for fields the description did not carry.
const UnknownValue = "不明"

// fieldLabels is the description vocabulary, in rendering order.
var fieldLabels = []struct {
	field Field
	label string
}{
	{FieldEHRName, "電子カルテ名"},
	{FieldHospitalName, "病院名"},
	{FieldPatientID, "患者ID"},
	{FieldConsultationDate, "診察日"},
	{FieldAcquisitionTime, "取得時間"},
}

// DerivedFields are the values parsed out of a ticket description.
type DerivedFields struct {
	EHRName          string `json:"ehrName,omitempty"`
	HospitalName     string `json:"hospitalName,omitempty"`
	PatientID        string `json:"patientId,omitempty"`
	ConsultationDate string `json:"consultationDate,omitempty"`
	AcquisitionTime  string `json:"acquisitionTime,omitempty"`
}

func (d *DerivedFields) slot(f Field) *string {
	switch f {
	case FieldEHRName:
		return &d.EHRName
	case FieldHospitalName:
		return &d.HospitalName
	case FieldPatientID:
		return &d.PatientID
	case FieldConsultationDate:
		return &d.ConsultationDate
	case FieldAcquisitionTime:
		return &d.AcquisitionTime
	}
	return nil
}

// Get returns the raw value of f.
func (d DerivedFields) Get(f Field) string {
	if p := d.slot(f); p != nil {
		return *p
	}
	return ""
}

// Display returns the value of f or UnknownValue.
func (d DerivedFields) Display(f Field) string {
	if v := d.Get(f); v != "" {
		return v
	}
	return UnknownValue
}

// ParseDescription reads "label: value" lines. Only the first colon splits a
// line, so values may contain colons. Lines without a colon and unknown
// labels are skipped.
func ParseDescription(description string) DerivedFields {
	var out DerivedFields
	for _, line := range strings.Split(description, "\n") {
		key, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		for _, fl := range fieldLabels {
			if fl.label == key {
				*out.slot(fl.field) = value
				break
			}
		}
	}
	return out
}

// FormatDescription renders the non-empty fields as "label: value" lines.
func FormatDescription(fields DerivedFields) string {
	var b strings.Builder
	for _, fl := range fieldLabels {
		v := fields.Get(fl.field)
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fl.label)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

// splitLabel splits on the first ASCII or full-width colon.
func splitLabel(line string) (string, string, bool) {
	idx := strings.IndexAny(line, ":：")
	if idx < 0 {
		return "", "", false
	}
	sep := 1
	if strings.HasPrefix(line[idx:], "：") {
		sep = len("：")
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(strings.TrimSuffix(line[idx+sep:], "\r"))
	return key, value, true
}
