package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestDiagnosticsDoNotPanic(t *testing.T) {
	SetLevel(zerolog.DebugLevel)
	defer SetLevel(zerolog.WarnLevel)

	FanOutWarning("orders", "order_items")
	JoinPlanChosen("orders", []string{"order_items", "customers"})
	MergedBucketsChosen(2)
	CumulativePlanChosen(1)
}
