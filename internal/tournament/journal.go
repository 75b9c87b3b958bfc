package tournament

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hansimuller/taekwon/internal/metrics"
	"github.com/hansimuller/taekwon/internal/store"
)

const journalQueue = 256

// journal writes actions in the background. Entries are best effort: a full
// queue or a failed write is logged and the entry is lost.
type journal struct {
	store        store.Store
	tournamentID string
	log          *zap.Logger
	metrics      *metrics.Metrics
	timeout      time.Duration

	queue   chan store.Action
	done    chan struct{}
	started bool
}

func newJournal(st store.Store, tournamentID string, log *zap.Logger, m *metrics.Metrics, timeout time.Duration) *journal {
	return &journal{
		store:        st,
		tournamentID: tournamentID,
		log:          log.With(zap.String("component", "journal")),
		metrics:      m,
		timeout:      timeout,
		queue:        make(chan store.Action, journalQueue),
		done:         make(chan struct{}),
	}
}

// record queues an entry without blocking. Only the tournament loop calls it.
func (j *journal) record(actor, action, detail string) {
	a := store.Action{TournamentID: j.tournamentID, Actor: actor, Action: action, Detail: detail, At: time.Now().UTC()}
	select {
	case j.queue <- a:
	default:
		j.log.Warn("journal queue full, dropping entry", zap.String("action", action), zap.String("actor", actor))
	}
}

func (j *journal) start() {
	j.started = true
	go j.run()
}

func (j *journal) run() {
	defer close(j.done)
	for a := range j.queue {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		if err := j.store.AppendAction(ctx, a); err != nil {
			j.metrics.StoreError("appendAction")
			j.log.Warn("journal write failed", zap.String("action", a.Action), zap.Error(err))
		}
		cancel()
	}
}

// stop flushes queued entries and waits for the writer to finish.
func (j *journal) stop() {
	close(j.queue)
	if j.started {
		<-j.done
	}
}
