package batch

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/tasks"
)

func strptr(s string) *string { return &s }

type fakeCompanyStore struct {
	companies []models.Company
}

func (f *fakeCompanyStore) ListCompanies(ctx context.Context, sel models.Selection) ([]models.Company, error) {
	return f.companies, nil
}

type fakeSink struct {
	saved   []models.ExtractionResult
	saveErr error
}

func (f *fakeSink) SaveResult(ctx context.Context, result models.ExtractionResult) error {
	f.saved = append(f.saved, result)
	return f.saveErr
}

type fakeRunStore struct {
	created  []models.BatchRun
	finished []models.BatchRun
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run models.BatchRun) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeRunStore) FinishRun(ctx context.Context, run models.BatchRun) error {
	f.finished = append(f.finished, run)
	return nil
}

func (f *fakeRunStore) ListRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	return f.finished, nil
}

// fakeRunner produces a canned result per company and can run a hook
// mid-company, which the stop test uses.
type fakeRunner struct {
	results map[int64]models.ExtractionResult
	onRun   func(company models.Company)
	ran     []int64
}

func (f *fakeRunner) Run(ctx context.Context, ex tasks.Extractor, company models.Company) models.ExtractionResult {
	f.ran = append(f.ran, company.ID)
	if f.onRun != nil {
		f.onRun(company)
	}
	if result, ok := f.results[company.ID]; ok {
		return result
	}
	return models.ExtractionResult{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		TaskName:    ex.Name(),
		Status:      models.StatusValid,
		CompletedAt: time.Now(),
	}
}

type fakeReport struct {
	rows []models.ExtractionResult
}

func (f *fakeReport) Append(result models.ExtractionResult) error {
	f.rows = append(f.rows, result)
	return nil
}

func (f *fakeReport) Path() string { return "report.xlsx" }
func (f *fakeReport) Close() error { return nil }

type fixture struct {
	orchestrator *Orchestrator
	store        *fakeCompanyStore
	sink         *fakeSink
	runs         *fakeRunStore
	runner       *fakeRunner
	report       *fakeReport
}

func newFixture(companies ...models.Company) *fixture {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f := &fixture{
		store:  &fakeCompanyStore{companies: companies},
		sink:   &fakeSink{},
		runs:   &fakeRunStore{},
		runner: &fakeRunner{results: make(map[int64]models.ExtractionResult)},
		report: &fakeReport{},
	}

	registry := tasks.NewRegistry(tasks.NewPasswordCheck(), tasks.NewLedgerExtract())
	f.orchestrator = NewOrchestrator(f.store, f.sink, f.runs, f.runner, registry,
		config.BatchConfig{ReportDir: "/tmp"}, logger)
	f.orchestrator.newReport = func(dir, runID, taskName string) (ReportWriter, error) {
		return f.report, nil
	}
	return f
}

func company(id int64, name string) models.Company {
	return models.Company{ID: id, Name: name, TaxPIN: strptr("P051234567A"), Password: strptr("pw")}
}

func TestRunProcessesCompaniesInOrder(t *testing.T) {
	f := newFixture(company(1, "Alpha"), company(2, "Beta"), company(3, "Gamma"))

	run, err := f.orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, f.runner.ran)
	assert.Equal(t, 3, run.Succeeded)
	assert.Zero(t, run.Failed)
	assert.Len(t, f.sink.saved, 3)
	assert.Len(t, f.report.rows, 3)
	assert.NotNil(t, run.FinishedAt)
	assert.False(t, f.orchestrator.Progress().Running)
}

func TestRunUnknownTask(t *testing.T) {
	f := newFixture(company(1, "Alpha"))

	_, err := f.orchestrator.Run(context.Background(), "bogus", models.Selection{})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRunContinuesPastFailures(t *testing.T) {
	f := newFixture(company(1, "Alpha"), company(2, "Beta"), company(3, "Gamma"))
	f.runner.results[2] = models.ExtractionResult{
		CompanyID: 2,
		TaskName:  tasks.TaskPasswordCheck,
		Status:    models.StatusError,
		Detail:    "login timed out",
	}

	run, err := f.orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, f.runner.ran, "a failed company must not stop the walk")
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
}

func TestRunSurvivesTaskPanic(t *testing.T) {
	f := newFixture(company(1, "Alpha"), company(2, "Beta"))
	f.runner.onRun = func(c models.Company) {
		if c.ID == 1 {
			panic("selector vanished")
		}
	}

	run, err := f.orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Succeeded)
	require.Len(t, f.report.rows, 2)
	assert.Equal(t, models.StatusError, f.report.rows[0].Status)
	assert.Contains(t, f.report.rows[0].Detail, "selector vanished")
}

func TestStopHaltsAtCompanyBoundary(t *testing.T) {
	f := newFixture(company(1, "Alpha"), company(2, "Beta"), company(3, "Gamma"))
	f.runner.onRun = func(c models.Company) {
		if c.ID == 1 {
			// Stop lands mid-company; the current company must still
			// finish and get its row.
			require.True(t, f.orchestrator.Stop())
		}
	}

	run, err := f.orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, f.runner.ran)
	assert.Len(t, f.sink.saved, 1)
	assert.Len(t, f.report.rows, 1)
	assert.Equal(t, 1, run.Succeeded)
}

func TestStopWithoutActiveRun(t *testing.T) {
	f := newFixture()
	assert.False(t, f.orchestrator.Stop())
}

func TestSinkFailureDoesNotStopRun(t *testing.T) {
	f := newFixture(company(1, "Alpha"), company(2, "Beta"))
	f.sink.saveErr = assert.AnError

	run, err := f.orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, f.runner.ran)
	assert.Equal(t, 2, run.Succeeded)
	assert.Len(t, f.report.rows, 2, "report rows must land even when the sink fails")
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	f := newFixture(company(1, "Alpha"))

	started := make(chan struct{})
	release := make(chan struct{})
	f.runner.onRun = func(models.Company) {
		close(started)
		<-release
	}

	_, err := f.orchestrator.Start(tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)
	<-started

	_, err = f.orchestrator.Start(tasks.TaskPasswordCheck, models.Selection{})
	assert.ErrorIs(t, err, ErrRunActive)

	snapshot := f.orchestrator.Progress()
	assert.True(t, snapshot.Running)
	assert.Equal(t, "Alpha", snapshot.CurrentCompany)

	close(release)
	require.Eventually(t, func() bool {
		return !f.orchestrator.Progress().Running
	}, 2*time.Second, 10*time.Millisecond)
}
