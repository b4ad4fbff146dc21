package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Production, ParseEnvironment("production"))
	assert.Equal(t, Staging, ParseEnvironment("staging"))
	assert.Equal(t, Testing, ParseEnvironment("testing"))
	assert.Equal(t, Development, ParseEnvironment("development"))

	// Unknown values degrade to development defaults.
	assert.Equal(t, Development, ParseEnvironment("prod"))
	assert.Equal(t, Development, ParseEnvironment(""))
}

func TestIsDeployed(t *testing.T) {
	assert.True(t, Production.IsDeployed())
	assert.True(t, Staging.IsDeployed())
	assert.False(t, Testing.IsDeployed())
	assert.False(t, Development.IsDeployed())
}
