package export

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"smena/internal/metrics"
)

// Config holds configuration for the payroll export service.
type Config struct {
	// ReportsDir is where monthly workbooks are written.
	ReportsDir string

	// Restaurants lists the restaurant ids to export.
	Restaurants []string

	// ExportOnStart if true, runs an export immediately on service start.
	ExportOnStart bool

	// Location is the business timezone the schedule follows.
	Location *time.Location
}

// Service writes one payroll workbook per month, per restaurant, on the 1st
// of each month for the month just ended.
type Service struct {
	config   Config
	reporter Reporter
	writer   func() WorkbookWriter // factory for creating new workbook writers
	logger   *zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates a new payroll export service.
func NewService(config Config, reporter Reporter, writerFactory func() WorkbookWriter, logger *zerolog.Logger) *Service {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.ReportsDir == "" {
		config.ReportsDir = "reports"
	}
	return &Service{
		config:   config,
		reporter: reporter,
		writer:   writerFactory,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the export scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunExport()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Str("reports_dir", s.config.ReportsDir).
		Int("restaurants", len(s.config.Restaurants)).Msg("payroll export service started")
}

// Stop gracefully stops the export service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("payroll export service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	s.logger.Info().Time("next_run", nextRun).Msg("next payroll export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExport()

			nextRun = s.nextFirstOfMonth()
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("next_run", nextRun).Msg("next payroll export scheduled")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	now := time.Now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, s.config.Location)
}

// RunExport builds and writes last month's workbook immediately.
func (s *Service) RunExport() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	month := PreviousMonth(time.Now(), s.config.Location)
	if err := s.ExportMonth(ctx, month); err != nil {
		metrics.IncPayrollExport("error")
		s.logger.Error().Err(err).Str("month", month).Msg("payroll export failed")
		return
	}
	metrics.IncPayrollExport("ok")
}

// ExportMonth writes the workbook for a given month key ("2006-01").
func (s *Service) ExportMonth(ctx context.Context, month string) error {
	if err := os.MkdirAll(s.config.ReportsDir, 0o755); err != nil {
		return err
	}

	w := s.writer()
	for _, restaurantID := range s.config.Restaurants {
		report, err := s.reporter.BuildMonthReport(ctx, restaurantID, month, nil)
		if err != nil {
			return err
		}
		if err := WriteReport(w, report, s.config.Location); err != nil {
			return err
		}
	}

	path := filepath.Join(s.config.ReportsDir, Filename(month))
	if err := w.SaveToFile(path); err != nil {
		return err
	}
	s.logger.Info().Str("path", path).Str("month", month).Msg("payroll workbook written")
	return nil
}
