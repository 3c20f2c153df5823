package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncSyncPass("airbnb", "success")
		IncBookingChange("created")
		IncConflict("overlap")
		IncActionCreated("booking")
		IncFetchRetry("airbnb")
		IncEventParsed("booking", "ok")
		IncHTTP("bookings")
	})
}
