package testutil

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/ioseq/internal/snapshot"
)

// Epoch is a fixed base instant for test timelines.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// At returns Epoch plus the given number of seconds, at microsecond precision.
func At(seconds float64) time.Time {
	return Epoch.Add(time.Duration(math.Round(seconds*1e6)) * time.Microsecond)
}

// Buffer returns a digital I/O buffer with the listed bits set, sized to hold
// at least 16 bits.
func Buffer(set ...int) []byte {
	n := 2
	for _, b := range set {
		if b/8+1 > n {
			n = b/8 + 1
		}
	}
	buf := make([]byte, n)
	for _, b := range set {
		buf[b/8] |= 1 << (b % 8)
	}
	return buf
}

// OutputState returns an ok snapshot whose digital outputs have the listed
// bits set. Inputs are absent.
func OutputState(entity string, at time.Time, set ...int) snapshot.Snapshot {
	return snapshot.Snapshot{
		Timestamp:      at,
		EntityID:       entity,
		Status:         snapshot.StatusOK,
		DigitalOutputs: Buffer(set...),
	}
}

// InputState returns an ok snapshot whose digital inputs have the listed
// bits set. Outputs are absent.
func InputState(entity string, at time.Time, set ...int) snapshot.Snapshot {
	return snapshot.Snapshot{
		Timestamp:     at,
		EntityID:      entity,
		Status:        snapshot.StatusOK,
		DigitalInputs: Buffer(set...),
	}
}

// StateTopic returns the state topic for entity under the default root.
func StateTopic(scope, entity string) string {
	return fmt.Sprintf("uhn/%s/device/%s/state", scope, entity)
}

// StateDelivery schedules s on its state topic, arriving at its own timestamp.
func StateDelivery(scope string, s snapshot.Snapshot) Delivery {
	return Delivery{At: s.Timestamp, Topic: StateTopic(scope, s.EntityID), Payload: snapshot.Encode(s)}
}
