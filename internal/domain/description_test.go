package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDescription_KnownLabels(t *testing.T) {
	desc := "電子カルテ名: CLIUS\n病院名: 駅前クリニック\n患者ID: 000123\n診察日: 2025/04/18\n取得時間: 10:42:05"

	got := ParseDescription(desc)

	assert.Equal(t, DerivedFields{
		EHRName:          "CLIUS",
		HospitalName:     "駅前クリニック",
		PatientID:        "000123",
		ConsultationDate: "2025/04/18",
		AcquisitionTime:  "10:42:05",
	}, got)
}

func TestParseDescription_IgnoresUnknownAndMalformedLines(t *testing.T) {
	desc := "備考: 至急\nno colon here\n\n患者ID：55\r\n  病院名 :  北口医院  "

	got := ParseDescription(desc)

	assert.Equal(t, "55", got.PatientID)
	assert.Equal(t, "北口医院", got.HospitalName)
	assert.Equal(t, "", got.EHRName)
	assert.Equal(t, UnknownValue, got.Display(FieldEHRName))
}

func TestParseDescription_Empty(t *testing.T) {
	assert.Equal(t, DerivedFields{}, ParseDescription(""))
}

func TestDescriptionRoundTrip(t *testing.T) {
	cases := []DerivedFields{
		{EHRName: "Digikar", HospitalName: "中央病院", PatientID: "P-1", ConsultationDate: "2025-10-01", AcquisitionTime: "08:00"},
		{PatientID: "only-id"},
		{HospitalName: "A", AcquisitionTime: "12:30:00"},
		{},
	}
	for _, fields := range cases {
		assert.Equal(t, fields, ParseDescription(FormatDescription(fields)))
	}
}

func TestRoundTrip_UnknownLabelsDropped(t *testing.T) {
	desc := FormatDescription(DerivedFields{PatientID: "9"}) + "\n担当: 佐藤"

	assert.Equal(t, DerivedFields{PatientID: "9"}, ParseDescription(desc))
}
