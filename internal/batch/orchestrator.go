package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/report"
	"github.com/taxtrack/itax-automation/internal/storage"
	"github.com/taxtrack/itax-automation/internal/tasks"
)

// ErrUnknownTask means the requested task name is not registered.
var ErrUnknownTask = errors.New("unknown task")

// TaskRunner executes one extractor against one company. Satisfied by
// tasks.Runner.
type TaskRunner interface {
	Run(ctx context.Context, ex tasks.Extractor, company models.Company) models.ExtractionResult
}

// ReportWriter receives results row by row. Satisfied by report.Writer.
type ReportWriter interface {
	Append(result models.ExtractionResult) error
	Path() string
	Close() error
}

// Orchestrator walks the company register sequentially, one browser per
// company, and fans results out to the sink and the Excel report. A
// company failing never stops the walk; a stop request halts it at the
// next company boundary, never mid-company.
type Orchestrator struct {
	companies storage.CompanyStore
	sink      storage.ResultSink
	runs      storage.RunStore
	runner    TaskRunner
	registry  *tasks.Registry
	config    config.BatchConfig
	logger    *logrus.Logger
	state     *runState

	// newReport is swappable in tests.
	newReport func(dir, runID, taskName string) (ReportWriter, error)
}

// NewOrchestrator wires the batch engine.
func NewOrchestrator(
	companies storage.CompanyStore,
	sink storage.ResultSink,
	runs storage.RunStore,
	runner TaskRunner,
	registry *tasks.Registry,
	cfg config.BatchConfig,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		companies: companies,
		sink:      sink,
		runs:      runs,
		runner:    runner,
		registry:  registry,
		config:    cfg,
		logger:    logger,
		state:     &runState{},
		newReport: func(dir, runID, taskName string) (ReportWriter, error) {
			return report.NewWriter(dir, runID, taskName)
		},
	}
}

// Start launches a run in the background and returns its ID.
func (o *Orchestrator) Start(taskName string, sel models.Selection) (string, error) {
	ex, ok := o.registry.Get(taskName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, taskName)
	}

	runID := uuid.New().String()[:8]
	if err := o.state.begin(runID, taskName); err != nil {
		return "", err
	}

	go func() {
		if _, err := o.execute(context.Background(), runID, ex, sel); err != nil {
			o.logger.WithError(err).Error("Batch run failed")
		}
	}()

	return runID, nil
}

// Run executes a batch synchronously. The worker entrypoint uses this;
// the API uses Start.
func (o *Orchestrator) Run(ctx context.Context, taskName string, sel models.Selection) (models.BatchRun, error) {
	ex, ok := o.registry.Get(taskName)
	if !ok {
		return models.BatchRun{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskName)
	}

	runID := uuid.New().String()[:8]
	if err := o.state.begin(runID, taskName); err != nil {
		return models.BatchRun{}, err
	}
	return o.execute(ctx, runID, ex, sel)
}

// Stop asks the active run to halt at the next company boundary. The
// company currently in the browser always finishes. Returns false when
// nothing is running.
func (o *Orchestrator) Stop() bool {
	return o.state.requestStop()
}

// Progress returns the live view of the current (or last) run.
func (o *Orchestrator) Progress() models.ProgressSnapshot {
	return o.state.snapshot()
}

// TaskNames lists the runnable tasks.
func (o *Orchestrator) TaskNames() []string {
	return o.registry.Names()
}

func (o *Orchestrator) execute(ctx context.Context, runID string, ex tasks.Extractor, sel models.Selection) (models.BatchRun, error) {
	defer o.state.finish()

	log := o.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"task":   ex.Name(),
	})

	companies, err := o.companies.ListCompanies(ctx, sel)
	if err != nil {
		return models.BatchRun{}, fmt.Errorf("failed to load companies: %w", err)
	}
	o.state.setTotal(len(companies))

	writer, err := o.newReport(o.config.ReportDir, runID, ex.Name())
	if err != nil {
		return models.BatchRun{}, fmt.Errorf("failed to create report: %w", err)
	}
	defer writer.Close()

	run := models.BatchRun{
		ID:         runID,
		TaskName:   ex.Name(),
		Total:      len(companies),
		ReportPath: writer.Path(),
		StartedAt:  time.Now(),
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to record run start")
	}

	log.WithField("companies", len(companies)).Info("Batch run started")

	for _, company := range companies {
		// The only stop points are between companies. A company that
		// entered the portal always gets its teardown and its row.
		if o.state.stopWanted() {
			log.Info("Stop requested, halting at company boundary")
			break
		}
		if ctx.Err() != nil {
			log.Info("Context cancelled, halting at company boundary")
			break
		}

		o.state.advance(company.Name)
		result := o.runCompany(ctx, ex, company)
		o.state.done()

		if result.Failed() {
			run.Failed++
		} else {
			run.Succeeded++
		}

		// Persistence failures are logged, never fatal. The walk keeps
		// its place and the report still gets the row.
		if err := o.sink.SaveResult(ctx, result); err != nil {
			log.WithError(err).WithField("company_id", company.ID).Error("Failed to persist result")
		}
		if err := writer.Append(result); err != nil {
			log.WithError(err).WithField("company_id", company.ID).Error("Failed to append report row")
		}
	}

	now := time.Now()
	run.FinishedAt = &now
	if err := o.runs.FinishRun(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to record run finish")
	}

	log.WithFields(logrus.Fields{
		"succeeded": run.Succeeded,
		"failed":    run.Failed,
	}).Info("Batch run finished")
	return run, nil
}

// runCompany isolates one company's execution. A panic anywhere in the
// task stack becomes an Error row instead of killing the batch.
func (o *Orchestrator) runCompany(ctx context.Context, ex tasks.Extractor, company models.Company) (result models.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(logrus.Fields{
				"company_id": company.ID,
				"panic":      r,
			}).Error("Task panicked")
			result = models.ExtractionResult{
				CompanyID:   company.ID,
				CompanyName: company.Name,
				TaxPIN:      company.PIN(),
				TaskName:    ex.Name(),
				Status:      models.StatusError,
				Detail:      fmt.Sprintf("panic: %v", r),
				CompletedAt: time.Now(),
			}
		}
	}()

	return o.runner.Run(ctx, ex, company)
}
