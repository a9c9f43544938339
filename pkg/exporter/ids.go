package exporter

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idSuffixSpace is the range of the random digits appended to each id
const idSuffixSpace = 1_000_000

// idSequence hands out numeric ids: the millisecond clock, never repeating
// within the process, followed by six random digits so that two processes
// reading the same clock still get different ids.
type idSequence struct {
	last   atomic.Int64
	now    func() time.Time
	random func() uint32
}

func newIDSequence() *idSequence {
	return &idSequence{now: time.Now, random: randomUint32}
}

func randomUint32() uint32 {
	u := uuid.New()
	return binary.BigEndian.Uint32(u[:4])
}

func (s *idSequence) millis() int64 {
	for {
		prev := s.last.Load()
		n := s.now().UnixMilli()
		if n <= prev {
			n = prev + 1
		}
		if s.last.CompareAndSwap(prev, n) {
			return n
		}
	}
}

func (s *idSequence) next() string {
	return fmt.Sprintf("%d%06d", s.millis(), s.random()%idSuffixSpace)
}

var ids = newIDSequence()

// NewSessionID returns a token of the form session_<numeric>
func NewSessionID() string {
	return "session_" + ids.next()
}

// NewFeedbackID returns a token of the form feedback_<numeric>
func NewFeedbackID() string {
	return "feedback_" + ids.next()
}
