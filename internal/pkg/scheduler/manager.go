package scheduler

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/soulcompass-app/SoulCompass/internal/pkg/telemetry"
)

const (
	flushInterval    = 5 * time.Minute
	baselineInterval = 1 * time.Hour
)

// Manager runs the background maintenance tasks: draining the telemetry
// counters into daily stats and recomputing the demand baselines. Both jobs
// are non-blocking with respect to request handling; pricing tolerates their
// output being stale.
type Manager struct {
	flushTicker    *time.Ticker
	baselineTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global scheduler manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// Start starts the background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Scheduler] Starting background tasks")

	m.flushTicker = time.NewTicker(flushInterval)
	m.wg.Add(1)
	go m.flushWorker()

	m.baselineTicker = time.NewTicker(baselineInterval)
	m.wg.Add(1)
	go m.baselineWorker()

	// Prime the baselines once on startup so the demand analyzer is not
	// blind until the first tick.
	go func() {
		if err := telemetry.RecomputeBaselines(); err != nil {
			log.Warnf("[Scheduler] Initial baseline recompute failed: %v", err)
		}
	}()

	log.Info("[Scheduler] Started successfully")
}

// Stop stops the background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] Stopping background tasks...")

	if m.flushTicker != nil {
		m.flushTicker.Stop()
	}
	if m.baselineTicker != nil {
		m.baselineTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Scheduler] Stopped successfully")
}

// flushWorker periodically drains pending session counters from Redis to DB
func (m *Manager) flushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Flush worker stopping")
			return
		case <-m.flushTicker.C:
			if err := telemetry.FlushPending(); err != nil {
				log.Errorf("[Scheduler] Error flushing session counters: %v", err)
			}
		}
	}
}

// baselineWorker periodically recomputes demand baselines from daily stats
func (m *Manager) baselineWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Baseline worker stopping")
			return
		case <-m.baselineTicker.C:
			if err := telemetry.RecomputeBaselines(); err != nil {
				log.Errorf("[Scheduler] Error recomputing demand baselines: %v", err)
			}
		}
	}
}
