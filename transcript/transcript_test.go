package transcript_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaceandtimefdn/proof-of-sql-go/scalar"
	"github.com/spaceandtimefdn/proof-of-sql-go/transcript"
)

func TestDeterminism(t *testing.T) {
	run := func() [4]string {
		tr := transcript.New("test protocol")
		tr.AppendBytes("blob", []byte{1, 2, 3})
		tr.AppendUint64s("lengths", 4, 5)
		tr.AppendScalars("values", scalar.FromInt64(6), scalar.FromInt64(-7))
		var out [4]string
		for i := range out {
			c := tr.ChallengeScalar("round challenge")
			out[i] = c.String()
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestChallengeAdvancesState(t *testing.T) {
	tr := transcript.New("test protocol")
	a := tr.ChallengeScalar("challenge")
	b := tr.ChallengeScalar("challenge")
	assert.NotEqual(t, a, b)
}

func TestDivergence(t *testing.T) {
	challenge := func(build func(tr *transcript.Transcript)) string {
		tr := transcript.New("test protocol")
		build(tr)
		c := tr.ChallengeScalar("challenge")
		return c.String()
	}

	base := challenge(func(tr *transcript.Transcript) {
		tr.AppendBytes("blob", []byte{1, 2, 3})
	})

	t.Run("DifferentData", func(t *testing.T) {
		assert.NotEqual(t, base, challenge(func(tr *transcript.Transcript) {
			tr.AppendBytes("blob", []byte{1, 2, 4})
		}))
	})

	t.Run("DifferentLabel", func(t *testing.T) {
		assert.NotEqual(t, base, challenge(func(tr *transcript.Transcript) {
			tr.AppendBytes("other", []byte{1, 2, 3})
		}))
	})

	t.Run("DifferentProtocol", func(t *testing.T) {
		tr := transcript.New("another protocol")
		tr.AppendBytes("blob", []byte{1, 2, 3})
		c := tr.ChallengeScalar("challenge")
		assert.NotEqual(t, base, c.String())
	})

	t.Run("SplitMessage", func(t *testing.T) {
		// appending [1,2,3] once and [1,2],[3] twice must not collide
		assert.NotEqual(t, base, challenge(func(tr *transcript.Transcript) {
			tr.AppendBytes("blob", []byte{1, 2})
			tr.AppendBytes("blob", []byte{3})
		}))
	})

	t.Run("ScalarVersusBytes", func(t *testing.T) {
		assert.NotEqual(t,
			challenge(func(tr *transcript.Transcript) {
				tr.AppendScalars("x", scalar.FromInt64(1))
			}),
			challenge(func(tr *transcript.Transcript) {
				x := scalar.FromInt64(1)
				b := x.Bytes()
				tr.AppendBytes("x", b[:])
			}))
	})

	t.Run("EmptyAppendStillBinds", func(t *testing.T) {
		assert.NotEqual(t, base, challenge(func(tr *transcript.Transcript) {
			tr.AppendBytes("blob", []byte{1, 2, 3})
			tr.AppendUint64s("lengths")
		}))
	})
}

func TestChallengeScalars(t *testing.T) {
	tr := transcript.New("test protocol")
	batch := tr.ChallengeScalars("batch", 3)
	assert.Len(t, batch, 3)
	assert.NotEqual(t, batch[0], batch[1])
	assert.NotEqual(t, batch[1], batch[2])

	tr2 := transcript.New("test protocol")
	assert.Equal(t, batch[0], tr2.ChallengeScalar("batch"))
}
