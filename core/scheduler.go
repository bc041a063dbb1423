package session

import (
	"sync"
	"time"

	"github.com/alembiq/bunsen-core/core/audio"
	"github.com/alembiq/bunsen-core/core/events"
)

// playbackScheduler orders decoded model audio into one gapless stream and
// tracks every in-flight placement until the sink consumes it. Contiguous
// chunks are scheduled back to back: each start is the later of the cursor
// and now, and the cursor advances by the chunk's duration. If decoding
// falls behind real time the queue simply grows; latency increases but no
// audio is dropped.
type playbackScheduler struct {
	mu sync.Mutex

	sink *playbackDevice
	now  func() time.Time

	// nextStart is the virtual timeline cursor: the instant the next chunk
	// would begin if it arrived immediately. The zero value means "start at
	// now".
	nextStart time.Time
	nextID    int64
	active    map[int64]placement

	emitEvent eventEmitter
}

// placement is one scheduled chunk, held from scheduling until natural
// completion or interruption.
type placement struct {
	start    time.Time
	duration time.Duration
}

func newPlaybackScheduler(sink *playbackDevice) *playbackScheduler {
	return &playbackScheduler{
		sink:      sink,
		now:       time.Now,
		active:    map[int64]placement{},
		emitEvent: noopEventEmitter,
	}
}

// schedule places one decoded chunk immediately after everything already
// scheduled and hands it to the sink. Returns the chunk's start on the
// virtual timeline.
func (s *playbackScheduler) schedule(samples []float32, sampleRate int) (time.Time, error) {
	s.mu.Lock()

	start := s.now()
	if s.nextStart.After(start) {
		start = s.nextStart
	}
	duration := audio.Duration(len(samples), sampleRate)

	id := s.nextID
	s.nextID++
	s.active[id] = placement{start: start, duration: duration}
	s.nextStart = start.Add(duration)
	starting := len(s.active) == 1
	s.mu.Unlock()

	if starting {
		s.emitEvent(events.NewPlaybackStarted())
	}

	if err := s.sink.enqueue(samples); err != nil {
		s.discard(id)
		return time.Time{}, err
	}

	// The mark fires once the sink has consumed everything enqueued so far,
	// which is exactly this chunk's tail.
	if err := s.sink.mark(func() { s.complete(id) }); err != nil {
		s.discard(id)
		return time.Time{}, err
	}

	return start, nil
}

// complete removes a placement after the sink consumed it.
func (s *playbackScheduler) complete(id int64) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	finished := len(s.active) == 0
	s.mu.Unlock()

	if finished {
		s.emitEvent(events.NewPlaybackFinished())
	}
}

// discard drops a placement that never made it to the sink, without
// treating it as played.
func (s *playbackScheduler) discard(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, id)
}

// interrupt stops everything scheduled: flushes the sink so queued audio
// never plays, clears the arena, and rewinds the cursor so the next chunk
// starts fresh at now.
func (s *playbackScheduler) interrupt() {
	s.mu.Lock()
	stopped := len(s.active)
	s.active = map[int64]placement{}
	s.nextStart = time.Time{}
	s.mu.Unlock()

	s.sink.flush()

	if stopped > 0 {
		s.emitEvent(events.NewPlaybackInterrupted())
	}
}

// reset clears the arena and cursor without touching the sink. Used on
// connect so a fresh session starts from a clean timeline.
func (s *playbackScheduler) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = map[int64]placement{}
	s.nextStart = time.Time{}
}

func (s *playbackScheduler) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.active)
}
