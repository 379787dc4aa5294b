package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ioseq/internal/testutil"
)

// assertReport compares a failure report against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/sequence -update
func assertReport(t *testing.T, name string, err error) {
	t.Helper()

	var ve *VerifyError
	require.ErrorAs(t, err, &ve)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(ve.Report()))
}

func TestReport_Timeout(t *testing.T) {
	f := newFixture(t,
		testutil.InputState("io-a", testutil.At(0), 3),
		testutil.InputState("io-a", testutil.At(2)),
	)
	f.clock.Set(testutil.At(1))

	_, err := f.verifier(nil).Verify(context.Background(), betweenPlan(t), testutil.At(1.8))
	assertReport(t, "timeout_between", err)

	assert.Equal(t,
		"SEQUENCE_TIMEOUT: step 1 (input io-a bit 3 = 0 [between 500ms and 1.5s]) not matched by "+
			"2026-03-01T12:00:01.800000Z; previous match 2026-03-01T12:00:00.000000Z",
		err.Error())
}

func TestReport_Forbidden(t *testing.T) {
	f := newFixture(t,
		testutil.OutputState("io-a", testutil.At(0), 5),
		testutil.OutputState("io-a", testutil.At(0.1)),
		testutil.OutputState("io-a", testutil.At(0.2), 5),
	)

	_, err := f.verifier(nil).Verify(context.Background(), neverPlan(t), testutil.At(1))
	assertReport(t, "forbidden_never", err)

	assert.Equal(t,
		"FORBIDDEN_VALUE_OBSERVED: step 1 (output io-a bit 5 = 0 [never 0]): io-a output bit 5 was 0 at "+
			"2026-03-01T12:00:00.100000Z",
		err.Error())
}

func TestReport_NoHistory(t *testing.T) {
	f := newFixture(t)
	plan := mustBuild(t, NewBuilder().Output("io-z", 0, true))

	_, err := f.verifier(nil).Verify(context.Background(), plan, testutil.Epoch.Add(50*time.Millisecond))
	assertReport(t, "timeout_no_history", err)
}
