package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(toggleTotal.WithLabelValues("ok"))
	IncToggle("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(toggleTotal.WithLabelValues("ok")))

	before = testutil.ToFloat64(overridesExpired)
	IncOverrideExpired()
	assert.Equal(t, before+1, testutil.ToFloat64(overridesExpired))

	before = testutil.ToFloat64(configReloads.WithLabelValues("error"))
	IncConfigReload("error")
	assert.Equal(t, before+1, testutil.ToFloat64(configReloads.WithLabelValues("error")))
}
