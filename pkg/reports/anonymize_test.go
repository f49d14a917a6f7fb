package reports

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeValue_Deterministic(t *testing.T) {
	first := AnonymizeValue("jane.doe@campus.edu", "email")
	second := AnonymizeValue("jane.doe@campus.edu", "email")

	assert.Equal(t, first, second, "same input must always produce the same pseudonym")
	assert.NotEqual(t, "jane.doe@campus.edu", first)
}

func TestAnonymizeValue_EmailShape(t *testing.T) {
	masked := AnonymizeValue("jane.doe@campus.edu", "owner_email")

	emailRe := regexp.MustCompile(`^user\d{6}@example\.com$`)
	assert.Regexp(t, emailRe, masked)
}

func TestAnonymizeValue_Plate(t *testing.T) {
	masked := AnonymizeValue("KA-01-AB-1234", "plate_number").(string)

	assert.Regexp(t, `^\*\*\*\d{3}$`, masked)
	// Distinct plates should usually map to distinct pseudonyms
	other := AnonymizeValue("KA-05-XY-9999", "plate_number").(string)
	assert.NotEqual(t, masked, other)
}

func TestAnonymizeValue_PhoneKeepsLastFour(t *testing.T) {
	masked := AnonymizeValue("9876543210", "phone")
	assert.Equal(t, "***-***-3210", masked)
}

func TestAnonymizeValue_Name(t *testing.T) {
	masked := AnonymizeValue("Jane Doe", "owner_name")
	assert.Regexp(t, `^User_\d{6}$`, masked)
}

func TestAnonymizeValue_DefaultPartialMask(t *testing.T) {
	masked := AnonymizeValue("confidential", "remark")
	assert.Equal(t, "co********al", masked)

	// Short values are fully masked
	assert.Equal(t, "***", AnonymizeValue("abcd", "remark"))
}

func TestAnonymizeValue_NonStringPassthrough(t *testing.T) {
	assert.Equal(t, 42, AnonymizeValue(42, "email"))
	assert.Equal(t, "", AnonymizeValue("", "email"))
	assert.Nil(t, AnonymizeValue(nil, "email"))
}

func TestAnonymizeRow_MasksOnlyPIIFields(t *testing.T) {
	row := Row{
		"user_id":       int64(7),
		"name":          "Jane Doe",
		"email":         "jane.doe@campus.edu",
		"phone":         "9876543210",
		"designation":   "Professor",
		"department":    "Physics",
		"status":        "active",
		"vehicle_count": int64(2),
	}

	masked := AnonymizeRow(row, ReportUsers)

	assert.NotEqual(t, row["name"], masked["name"])
	assert.NotEqual(t, row["email"], masked["email"])
	assert.NotEqual(t, row["phone"], masked["phone"])

	assert.Equal(t, row["user_id"], masked["user_id"])
	assert.Equal(t, row["designation"], masked["designation"])
	assert.Equal(t, row["department"], masked["department"])
	assert.Equal(t, row["status"], masked["status"])
	assert.Equal(t, row["vehicle_count"], masked["vehicle_count"])

	// Original row is untouched
	assert.Equal(t, "Jane Doe", row["name"])
}

func TestAnonymizeRow_RepeatedValuesShareOnePseudonym(t *testing.T) {
	a := AnonymizeRow(Row{"email": "shared@campus.edu"}, ReportUsers)
	b := AnonymizeRow(Row{"email": "shared@campus.edu"}, ReportUsers)

	assert.Equal(t, a["email"], b["email"])
}
