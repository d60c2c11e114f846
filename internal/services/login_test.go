package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stepflow/internal/models"
)

func TestIsLoginStep(t *testing.T) {
	tests := []struct {
		rec  models.StepRecord
		want bool
	}{
		{models.StepRecord{Name: "Enter Username"}, true},
		{models.StepRecord{Name: "Type", Target: "#password"}, true},
		{models.StepRecord{Name: "Press", Description: "Sign In to the portal"}, true},
		{models.StepRecord{Name: "OAuth redirect"}, true},
		{models.StepRecord{Name: "Log in"}, true},
		{models.StepRecord{Name: "Open reports", Target: "#reports"}, false},
		{models.StepRecord{Name: "Signing document"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.rec.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoginStep(tt.rec))
		})
	}
}

func TestFilterLoginStepsRemovesEveryMatch(t *testing.T) {
	recs := []models.StepRecord{
		{Order: 1, Name: "Open login"},
		{Order: 2, Name: "Search"},
		{Order: 3, Name: "Re-enter password"},
		{Order: 4, Name: "Export"},
	}
	got := FilterLoginSteps(recs)
	assert.Equal(t, []models.StepRecord{{Order: 2, Name: "Search"}, {Order: 4, Name: "Export"}}, got)
	assert.Len(t, recs, 4, "input untouched")
	assert.True(t, ContainsLoginSteps(recs))
	assert.False(t, ContainsLoginSteps(got))
}

func TestHasLoginPrefix(t *testing.T) {
	full := []models.StepRecord{
		{Name: "Go to site", Type: models.StepNavigate, Target: "https://app.test"},
		{Name: "Fill email", Type: models.StepTextInput, Target: "#email"},
		{Name: "Fill password", Type: models.StepTextInput, Target: "#password"},
		{Name: "Submit form", Type: models.StepElementClick, Target: "#submit"},
	}
	assert.True(t, HasLoginPrefix(full))

	threeOfFour := append([]models.StepRecord(nil), full...)
	threeOfFour[3] = models.StepRecord{Name: "Open menu", Type: models.StepElementClick, Target: "#menu"}
	assert.True(t, HasLoginPrefix(threeOfFour))

	// positional: the right keywords in the wrong order do not count
	swapped := []models.StepRecord{full[2], full[1], full[0], threeOfFour[3]}
	assert.False(t, HasLoginPrefix(swapped))

	assert.False(t, HasLoginPrefix(full[:2]))
}
