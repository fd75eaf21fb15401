package appcore

import (
	"sync"
	"time"
)

type JobStage uint8

const (
	JobStageQueued JobStage = iota + 1
	JobStagePreparing
	JobStageProcessing
	JobStageFinalizing
	JobStageSucceeded
	JobStageFailed
	JobStageCanceled
)

func (s JobStage) String() string {
	switch s {
	case JobStageQueued:
		return "queued"
	case JobStagePreparing:
		return "preparing"
	case JobStageProcessing:
		return "processing"
	case JobStageFinalizing:
		return "finalizing"
	case JobStageSucceeded:
		return "succeeded"
	case JobStageFailed:
		return "failed"
	case JobStageCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// MarshalText reports stages by name in JSON.
func (s JobStage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s JobStage) IsTerminal() bool {
	return s == JobStageSucceeded || s == JobStageFailed || s == JobStageCanceled
}

type JobProgress struct {
	Stage     JobStage  `json:"stage"`
	Current   int64     `json:"current"`
	Total     int64     `json:"total"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobEvent struct {
	JobID      string       `json:"job_id"`
	Stage      JobStage     `json:"stage"`
	Progress   *JobProgress `json:"progress,omitempty"`
	Message    string       `json:"message"`
	Err        error        `json:"-"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type JobResult struct {
	JobID      string
	Stage      JobStage
	OutputPath string
	Artifacts  map[string]string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

const subscriberBuffer = 32

// Bus fans job events out to subscribers of a job id. Slow subscribers
// lose events rather than blocking the publisher.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan JobEvent
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan JobEvent)}
}

// Subscribe returns a channel of events for jobID and a func that
// unsubscribes and closes it.
func (b *Bus) Subscribe(jobID string) (<-chan JobEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan JobEvent, subscriberBuffer)
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[int]chan JobEvent)
	}
	b.subs[jobID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[jobID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, jobID)
				}
			}
			close(ch)
		})
	}
}

func (b *Bus) Publish(event JobEvent) {
	if b == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[event.JobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers reports how many listeners jobID has.
func (b *Bus) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}
