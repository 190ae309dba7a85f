// Package events fans per-URL processing events out to in-process
// subscribers, keyed by job id. Each (jobId, tournamentId) pair is
// published at most once per publisher lifetime, so a retried URL does not
// produce a duplicate event downstream.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hoganho/kingsroom-sub012/internal/game"
	"github.com/hoganho/kingsroom-sub012/internal/store"
)

// Action is the outcome an event reports for one URL.
type Action string

const (
	ActionCreated      Action = "CREATED"
	ActionUpdated      Action = "UPDATED"
	ActionSkipped      Action = "SKIPPED"
	ActionError        Action = "ERROR"
	ActionNotFound     Action = "NOT_FOUND"
	ActionNotPublished Action = "NOT_PUBLISHED"
)

// DataSource says where the page content came from.
type DataSource string

const (
	SourceS3   DataSource = "s3"
	SourceWeb  DataSource = "web"
	SourceNone DataSource = "none"
)

// Event is one per-URL processing notification.
type Event struct {
	JobID        string           `json:"jobId"`
	TournamentID int              `json:"tournamentId"`
	Action       Action           `json:"action"`
	DataSource   DataSource       `json:"dataSource"`
	BlobKey      string           `json:"blobKey,omitempty"`
	GameData     *game.GameData   `json:"gameData,omitempty"`
	SaveResult   store.SaveResult `json:"saveResult,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// subscriberBuffer bounds each subscription channel. A slow subscriber
// drops events rather than stalling the scrape loop.
const subscriberBuffer = 256

type jobKey struct {
	jobID        string
	tournamentID int
}

// Publisher delivers events to subscribers. The zero value is not usable;
// call NewPublisher.
type Publisher struct {
	log *logrus.Logger

	mu        sync.Mutex
	published map[jobKey]bool
	subs      map[string][]chan Event
}

func NewPublisher(log *logrus.Logger) *Publisher {
	return &Publisher{
		log:       log,
		published: make(map[jobKey]bool),
		subs:      make(map[string][]chan Event),
	}
}

// Publish delivers the event to every subscriber of its job. It returns
// false when the (jobId, tournamentId) pair was already published and the
// event was suppressed.
func (p *Publisher) Publish(ev Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := jobKey{jobID: ev.JobID, tournamentID: ev.TournamentID}
	if p.published[k] {
		p.log.WithFields(logrus.Fields{
			"jobId":        ev.JobID,
			"tournamentId": ev.TournamentID,
		}).Debug("duplicate event suppressed")
		return false
	}
	p.published[k] = true

	for _, ch := range p.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
			p.log.WithField("jobId", ev.JobID).Warn("subscriber buffer full, event dropped")
		}
	}
	return true
}

// Subscribe returns a channel receiving every subsequent event for the job
// and a cancel func that closes it.
func (p *Publisher) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	p.mu.Lock()
	p.subs[jobID] = append(p.subs[jobID], ch)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		subs := p.subs[jobID]
		for i, c := range subs {
			if c == ch {
				p.subs[jobID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// CloseJob drops the job's dedup state and closes its subscriptions. Call
// when a job finishes so long-lived publishers do not accumulate state.
func (p *Publisher) CloseJob(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k := range p.published {
		if k.jobID == jobID {
			delete(p.published, k)
		}
	}
	for _, ch := range p.subs[jobID] {
		close(ch)
	}
	delete(p.subs, jobID)
}
