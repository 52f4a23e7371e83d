package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsParkingPage_HostMatchAloneIsConclusive(t *testing.T) {
	assert.True(t, isParkingPage("https://sedoparking.com/abc123", "Welcome to our bakery"))
}

func TestIsParkingPage_SingleIndicatorIsInsufficient(t *testing.T) {
	assert.False(t, isParkingPage("https://example-bakery.com", "This domain is for sale, contact the owner for details."))
}

func TestIsParkingPage_TwoIndicatorsTrigger(t *testing.T) {
	text := "This domain is for sale. Buy this domain today before it's gone."
	assert.True(t, isParkingPage("https://example-bakery.com", text))
}

func TestIsParkingPage_NormalSiteIsNotParking(t *testing.T) {
	text := "Welcome to Example Bakery. We sell bread, cakes, and pastries daily."
	assert.False(t, isParkingPage("https://example-bakery.com", text))
}

func TestCompiledIndicators_AllPatternsCompiled(t *testing.T) {
	assert.GreaterOrEqual(t, len(compiledIndicators), 16)
}

func TestParkingHosts_HasAtLeastThirteenEntries(t *testing.T) {
	assert.GreaterOrEqual(t, len(parkingHosts), 13)
}
