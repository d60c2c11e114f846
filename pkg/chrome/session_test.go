package chrome

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stepflow/internal/locator"
)

func TestQueryFor(t *testing.T) {
	tests := []struct {
		sel  locator.Selector
		want query
	}{
		{locator.ID("submitBtn"), query{"#submitBtn", byID}},
		{locator.ID("user.name"), query{"//*[@id='user.name']", bySearch}},
		{locator.Class("login-btn"), query{".login-btn", byQuery}},
		{locator.Class("a:b"), query{"//*[contains(concat(' ',normalize-space(@class),' '),' a:b ')]", bySearch}},
		{locator.XPath("//button[text()='Go']"), query{"//button[text()='Go']", bySearch}},
		{locator.CSS("form > input[type='email']"), query{"form > input[type='email']", byQuery}},
	}
	for _, tt := range tests {
		t.Run(tt.sel.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, queryFor(tt.sel))
		})
	}
}

func TestQueryForMixedQuotes(t *testing.T) {
	assert.Equal(t, query{`//*[@id="it's"]`, bySearch}, queryFor(locator.ID("it's")))
	assert.Equal(t,
		query{`//*[@id=concat('say "hi" it',"'",'s')]`, bySearch},
		queryFor(locator.ID(`say "hi" it's`)))
	assert.Equal(t,
		query{`//*[contains(concat(' ',normalize-space(@class),' '),concat(' a"b',"'",'c '))]`, bySearch},
		queryFor(locator.Class(`a"b'c`)))
}

func TestLookupDevice(t *testing.T) {
	dev, err := LookupDevice("iPhone 12 Pro")
	assert.NoError(t, err)
	assert.True(t, dev.Mobile)
	assert.Equal(t, 1.0, dev.Scale)

	desk, err := LookupDevice("Desktop 1920x1080")
	assert.NoError(t, err)
	assert.False(t, desk.Mobile)
	assert.Equal(t, int64(1920), desk.Width)

	_, err = LookupDevice("Nokia 3310")
	assert.Error(t, err)
	assert.Contains(t, DeviceNames(), "iPhone 12 Pro")
}
