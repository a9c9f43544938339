package exporter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSequencesOnSameClockDiffer(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1717000000000) }
	a := &idSequence{now: clock, random: randomUint32}
	b := &idSequence{now: clock, random: randomUint32}

	idA, idB := a.next(), b.next()
	assert.NotEqual(t, idA, idB)
	assert.True(t, strings.HasPrefix(idA, "1717000000000"))
	assert.True(t, strings.HasPrefix(idB, "1717000000000"))
	assert.Regexp(t, `^\d+$`, idA)
}

func TestIDSequenceMonotonicWithinProcess(t *testing.T) {
	clock := func() time.Time { return time.UnixMilli(1717000000000) }
	s := &idSequence{now: clock, random: func() uint32 { return 42 }}

	assert.Equal(t, "1717000000000000042", s.next())
	assert.Equal(t, "1717000000001000042", s.next())
}

func TestIDSuffixIsPadded(t *testing.T) {
	s := &idSequence{now: func() time.Time { return time.UnixMilli(5) }, random: func() uint32 { return 7 }}
	assert.Equal(t, "5000007", s.next())

	s.random = func() uint32 { return idSuffixSpace + 3 }
	require.Equal(t, "6000003", s.next())
}
