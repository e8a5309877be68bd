package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher refreshes every region's dataset
type Refresher interface {
	RefreshAll(ctx context.Context) map[string]error
}

// Scheduler refreshes every region once at startup and again daily at the
// configured hour. Jobs run sequentially; a tick that lands while a refresh
// is still going is skipped by the job mutex.
type Scheduler struct {
	datasets    Refresher
	logger      *logrus.Logger
	refreshHour int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	jobMutex    sync.Mutex
}

func NewScheduler(datasets Refresher, logger *logrus.Logger, refreshHour int) *Scheduler {
	return &Scheduler{
		datasets:    datasets,
		logger:      logger,
		refreshHour: refreshHour,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the scheduled refresh loop
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.startupRefresh()
	go s.run()
}

// startupRefresh runs the initial refresh unless Stop already won the race
func (s *Scheduler) startupRefresh() {
	defer s.wg.Done()

	select {
	case <-s.stopChan:
		return
	default:
	}

	s.logger.Info("Running startup refresh")
	s.refreshAll()
	s.logger.Info("Startup refresh completed")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			if t.Hour() == s.refreshHour && t.Minute() == 0 {
				s.logger.Info("Starting scheduled refresh")
				s.refreshAll()
				s.logger.Info("Scheduled refresh completed")
			}
		}
	}
}

func (s *Scheduler) refreshAll() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	results := s.datasets.RefreshAll(context.Background())
	for region, err := range results {
		if err != nil {
			s.logger.WithError(err).WithField("region", region).Error("Scheduled refresh failed for region")
		}
	}
}

// Stop shuts the scheduler down and waits for any in-flight refresh
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
