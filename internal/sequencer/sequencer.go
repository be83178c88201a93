package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karimelassali/baraka-dispatch/internal/metrics"
	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/store"
	"github.com/karimelassali/baraka-dispatch/internal/transport"
)

var (
	ErrNotFound       = errors.New("campaign not found")
	ErrAlreadyRunning = errors.New("campaign is already being delivered")
	ErrCompleted      = errors.New("campaign is already completed")
)

// Manager drives campaign delivery: one goroutine per active campaign,
// recipients processed strictly in snapshot order. Campaigns run
// independently; the store serializes their writes.
type Manager struct {
	store        *store.CampaignStore
	transport    transport.Transport
	metrics      *metrics.Metrics
	logger       *slog.Logger
	sendInterval time.Duration

	ctx       context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu     sync.Mutex
	active map[string]*run
}

type run struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(st *store.CampaignStore, tr transport.Transport, m *metrics.Metrics, logger *slog.Logger, sendInterval time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:        st,
		transport:    tr,
		metrics:      m,
		logger:       logger.With("component", "sequencer"),
		sendInterval: sendInterval,
		ctx:          ctx,
		cancelAll:    cancel,
		active:       make(map[string]*run),
	}
}

// Start begins or resumes delivery for a campaign in a background goroutine.
// Resuming from a partially advanced cursor is the normal re-entry path.
// A campaign already being delivered by this process is rejected; duplicate
// resumes across processes are tolerated by the store's idempotent writes.
func (m *Manager) Start(id string) error {
	c, err := m.store.Load(m.ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if c.Status == models.CampaignStatusCompleted {
		return ErrCompleted
	}

	m.mu.Lock()
	if _, ok := m.active[id]; ok {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	r := &run{stop: make(chan struct{}), done: make(chan struct{})}
	m.active[id] = r
	m.mu.Unlock()

	m.wg.Add(1)
	m.metrics.ActiveCampaigns.Inc()

	go func() {
		defer func() {
			m.metrics.ActiveCampaigns.Dec()
			m.mu.Lock()
			delete(m.active, id)
			m.mu.Unlock()
			close(r.done)
			m.wg.Done()
		}()

		if err := m.deliver(m.ctx, c, r.stop); err != nil {
			m.logger.Error("campaign run halted", "campaign_id", id, "error", err)
		}
	}()

	return nil
}

// Cancel requests a cooperative stop. The in-flight send finishes and its
// outcome is recorded; the campaign stays at its cursor and can be resumed.
// Returns false when no run for the id is active in this process.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	r, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return false
	}

	r.stopOnce.Do(func() {
		close(r.stop)
		m.metrics.CampaignsCancelledTotal.Inc()
		m.logger.Info("campaign cancel requested", "campaign_id", id)
	})
	return true
}

// Active reports whether this process is currently delivering the campaign.
func (m *Manager) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Wait blocks until the active run for id finishes. No-op when none is active.
func (m *Manager) Wait(id string) {
	m.mu.Lock()
	r, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		<-r.done
	}
}

// Stop cancels all runs and waits for them to wind down. Interrupted sends
// are safe: unrecorded recipients are re-sent on resume.
func (m *Manager) Stop() {
	m.logger.Info("stopping sequencer...")
	m.cancelAll()
	m.wg.Wait()
	m.logger.Info("sequencer stopped")
}

// deliver walks recipients[cursor:] in strict order. One recipient's failure
// never halts the sequence; a failed outcome write does, because advancing
// past an unpersisted outcome would lose delivery history on resume.
func (m *Manager) deliver(ctx context.Context, c *models.Campaign, stop <-chan struct{}) error {
	log := m.logger.With("campaign_id", c.ID)

	if err := m.store.MarkRunning(ctx, c.ID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	m.metrics.CampaignsStartedTotal.Inc()
	log.Info("delivery started", "cursor", c.Cursor, "recipients", c.Total())

	for i := c.Cursor; i < len(c.Recipients); i++ {
		// Cancellation is checked between recipients, never mid-send.
		select {
		case <-stop:
			log.Info("delivery cancelled", "cursor", i)
			return nil
		case <-ctx.Done():
			log.Info("delivery interrupted by shutdown", "cursor", i)
			return nil
		default:
		}

		rcpt := c.Recipients[i]
		if rcpt.Outcome != nil {
			// Outcome already recorded by an earlier run; never re-send.
			continue
		}

		msg := &transport.Message{
			Contact:  rcpt.Contact,
			Body:     RenderMessage(c.MessageBody, rcpt),
			ImageURL: c.ImageURL,
		}

		sendStart := time.Now()
		sendErr := m.transport.Send(ctx, msg)
		m.metrics.SendDurationSeconds.Observe(time.Since(sendStart).Seconds())

		if sendErr != nil && ctx.Err() != nil {
			// Shutdown cut the send short; leave the recipient unrecorded
			// so a resume retries it.
			log.Info("delivery interrupted mid-send", "cursor", i)
			return nil
		}

		var outcome models.DeliveryOutcome
		if sendErr != nil {
			if errors.Is(sendErr, transport.ErrUnavailable) {
				m.metrics.GatewayUnavailableTotal.Inc()
				log.Error("message gateway unavailable", "recipient_id", rcpt.ID, "error", sendErr)
			} else {
				log.Debug("delivery failed", "recipient_id", rcpt.ID, "error", sendErr)
			}
			outcome = models.FailedOutcome(time.Now().UTC(), sendErr.Error())
			m.metrics.MessagesFailedTotal.Inc()
		} else {
			outcome = models.SentOutcome(time.Now().UTC())
			m.metrics.MessagesSentTotal.Inc()
		}

		if err := m.store.RecordOutcome(ctx, c.ID, rcpt.ID, outcome); err != nil {
			return fmt.Errorf("record outcome for recipient %s: %w", rcpt.ID, err)
		}

		if i < len(c.Recipients)-1 && m.sendInterval > 0 {
			timer := time.NewTimer(m.sendInterval)
			select {
			case <-stop:
				timer.Stop()
				log.Info("delivery cancelled", "cursor", i+1)
				return nil
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}

	if err := m.store.MarkCompleted(ctx, c.ID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	m.metrics.CampaignsCompletedTotal.Inc()
	log.Info("delivery completed", "recipients", c.Total())
	return nil
}
