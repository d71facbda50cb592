package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"qdbreport/internal/config"
	"qdbreport/internal/directory"
	apperrors "qdbreport/internal/errors"
	"qdbreport/internal/formatter"
	"qdbreport/internal/shared/testutil"
	"qdbreport/pkg/contracts/domain"
)

var (
	row       = testutil.Row
	fixedNow  = time.Date(2021, time.February, 15, 10, 0, 0, 0, time.UTC)
	jan2021   = domain.NewPeriod(2021, 1)
	diit      = domain.Unit{ID: 21, Name: "DIIT Software Development"}
	lbs       = domain.Unit{ID: 1, Name: "LBS"}
	emptyUnit = domain.Unit{ID: 40, Name: "Empty Unit"}
)

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) FetchLedger(ctx context.Context, period domain.Period, account string, costCenters []string) ([]domain.LedgerRow, error) {
	args := m.Called(ctx, period, account, costCenters)
	rows, _ := args.Get(0).([]domain.LedgerRow)
	return rows, args.Error(1)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) SendReport(ctx context.Context, summary domain.ReportSummary, filePath string, recipients []string) error {
	return m.Called(ctx, summary, filePath, recipients).Error(0)
}

func testSeed() *directory.Seed {
	return &directory.Seed{
		Units: []domain.Unit{
			lbs,
			{ID: 3, Name: "Communication"},
			diit,
			{ID: 27, Name: "FTVA"},
			emptyUnit,
			{ID: 99, Name: "All units"},
		},
		Staff: []domain.Staff{
			{ID: 1, Name: "Doris Wang", Email: "doris@library.ucla.edu"},
			{ID: 2, Name: "Ginny Steel", Email: "gsteel@library.ucla.edu"},
			{ID: 3, Name: "Todd Grappone", Email: "grappone@library.ucla.edu"},
			{ID: 4, Name: "Joshua Gomez", Email: "joshuagomez@library.ucla.edu"},
			{ID: 5, Name: "Alex Bicho", Email: "abicho@library.ucla.edu"},
			{ID: 6, Name: "Sam Assoc", Email: "sassoc@library.ucla.edu"},
		},
		Recipients: []directory.SeedRecipient{
			{UnitID: 1, StaffID: 1, Role: domain.RoleHead},
			{UnitID: 1, StaffID: 3, Role: domain.RoleAUL},
			{UnitID: 1, StaffID: 6, Role: domain.RoleAssoc},
			{UnitID: 3, StaffID: 2, Role: domain.RoleAUL},
			{UnitID: 3, StaffID: 5, Role: domain.RoleHead},
			{UnitID: 21, StaffID: 3, Role: domain.RoleAUL},
			{UnitID: 21, StaffID: 4, Role: domain.RoleHead},
			{UnitID: 21, StaffID: 6, Role: domain.RoleAssoc},
		},
		Accounts: []directory.SeedAccount{
			{UnitID: 21, Account: "436000", CostCenter: "BF"},
			{UnitID: 21, Account: "436000", CostCenter: "LM"},
			{UnitID: 21, Account: "436000", CostCenter: "AD"},
			{UnitID: 21, Account: "436100", CostCenter: ""},
			{UnitID: 21, Account: "430500", CostCenter: "AD"},
			{UnitID: 27, Account: "432975", CostCenter: "AD"},
			{UnitID: 40, Account: "439999", CostCenter: "AD"},
		},
	}
}

type fixture struct {
	orch    *Orchestrator
	cfg     *config.Config
	fetcher *mockFetcher
	sender  *mockSender
	logs    *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Reports.Dir = t.TempDir()

	logger, logs := testutil.NewTestLogger(t)
	fx := &fixture{cfg: cfg, fetcher: &mockFetcher{}, sender: &mockSender{}, logs: logs}

	orch, err := New(Options{
		Config:    cfg,
		Directory: directory.NewMemory(testSeed()),
		Fetcher:   fx.fetcher,
		Sender:    fx.sender,
		Clock:     func() time.Time { return fixedNow },
		Logger:    logger,
	})
	require.NoError(t, err)
	fx.orch = orch
	return fx
}

// expectDIIT wires the fetcher for unit 21: one regular selection with data,
// one Library Materials selection with data and one account with no rows.
func (fx *fixture) expectDIIT() {
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "430500", []string{"AD"}).
		Return([]domain.LedgerRow{}, nil)
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "436000", []string{"AD", "BF"}).
		Return([]domain.LedgerRow{
			row("436000", "AD", "19900", "00", "1000", "400", "0", "0", "600"),
			row("436000", "AD", "19900", "02", "500", "100", "0", "0", "400"),
			row("436000", "BF", "60523", "03", "200", "50", "0", "0", "150"),
		}, nil)
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "436000", []string{"LM"}).
		Return([]domain.LedgerRow{
			row("436000", "LM", "19942", "05", "300", "100", "0", "0", "200"),
		}, nil)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Config: config.Default()})
	assert.Error(t, err)

	_, err = New(Options{Config: config.Default(), Directory: directory.NewMemory(nil)})
	assert.Error(t, err)
}

func TestValidateDate(t *testing.T) {
	fx := newFixture(t)

	t.Run("defaults to previous month", func(t *testing.T) {
		p, err := fx.orch.ValidateDate(0, 0)
		require.NoError(t, err)
		assert.Equal(t, jan2021, p)
	})

	t.Run("valid periods", func(t *testing.T) {
		for _, p := range []domain.Period{{Year: 2019, Month: 1}, {Year: 2020, Month: 12}, {Year: 2021, Month: 2}} {
			got, err := fx.orch.ValidateDate(p.Year, p.Month)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	})

	invalid := []struct {
		name        string
		year, month int
	}{
		{"month out of range high", 2020, 13},
		{"month negative", 2020, -6},
		{"year without month", 2020, 0},
		{"month without year", 0, 5},
		{"next month", 2021, 3},
		{"next year", 2022, 2},
		{"negative year", -1, 5},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.orch.ValidateDate(tt.year, tt.month)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidPeriod)
		})
	}
}

func TestValidateDate_PreviousMonthAcrossBoundaries(t *testing.T) {
	tests := []struct {
		now  time.Time
		want domain.Period
	}{
		{time.Date(2021, time.March, 31, 8, 0, 0, 0, time.UTC), domain.NewPeriod(2021, 2)},
		{time.Date(2021, time.January, 5, 8, 0, 0, 0, time.UTC), domain.NewPeriod(2020, 12)},
	}
	for _, tt := range tests {
		orch, err := New(Options{
			Config:    config.Default(),
			Directory: directory.NewMemory(nil),
			Fetcher:   &mockFetcher{},
			Clock:     func() time.Time { return tt.now },
		})
		require.NoError(t, err)

		got, err := orch.ValidateDate(0, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveUnits(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	names := func(units []domain.Unit) []string {
		var out []string
		for _, u := range units {
			out = append(out, u.Name)
		}
		return out
	}
	all := []string{"Communication", "DIIT Software Development", "Empty Unit", "FTVA", "LBS"}

	t.Run("no ids selects all units by name", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx)
		require.NoError(t, err)
		assert.Equal(t, all, names(units))
	})

	t.Run("all units sentinel expands", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx, 99)
		require.NoError(t, err)
		assert.Equal(t, all, names(units))
	})

	t.Run("single unit", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx, 21)
		require.NoError(t, err)
		assert.Equal(t, []domain.Unit{diit}, units)
	})

	t.Run("keeps request order and drops repeats", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx, 21, 1, 21)
		require.NoError(t, err)
		assert.Equal(t, []domain.Unit{diit, lbs}, units)
	})

	t.Run("unknown ids", func(t *testing.T) {
		_, err := fx.orch.ResolveUnits(ctx, 21, 500, 600)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrUnknownUnit)
		assert.Contains(t, err.Error(), "[500 600]")
	})

	t.Run("unknown id alongside all units sentinel", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx, 99, 500)
		assert.ErrorIs(t, err, apperrors.ErrUnknownUnit)
		assert.Contains(t, err.Error(), "[500]")
		assert.Nil(t, units)
	})

	t.Run("sentinel with known ids still selects all", func(t *testing.T) {
		units, err := fx.orch.ResolveUnits(ctx, 21, 99)
		require.NoError(t, err)
		assert.Equal(t, all, names(units))
	})
}

func TestAccountsForUnit(t *testing.T) {
	fx := newFixture(t)

	got, err := fx.orch.AccountsForUnit(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, []AccountSelection{
		{Account: "430500", CostCenters: []string{"AD"}},
		{Account: "436000", CostCenters: []string{"AD", "BF"}},
		{Account: "436000", CostCenters: []string{"LM"}},
	}, got)

	none, err := fx.orch.AccountsForUnit(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveRecipients(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults plus every role", func(t *testing.T) {
		fx := newFixture(t)
		got, err := fx.orch.ResolveRecipients(ctx, diit.ID, diit.Name)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"akohler@library.ucla.edu",
			"grappone@library.ucla.edu",
			"joshuagomez@library.ucla.edu",
			"sassoc@library.ucla.edu",
		}, got)
	})

	t.Run("excluded staff never added", func(t *testing.T) {
		fx := newFixture(t)
		got, err := fx.orch.ResolveRecipients(ctx, 3, "Communication")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"abicho@library.ucla.edu",
			"akohler@library.ucla.edu",
			"joshuagomez@library.ucla.edu",
		}, got)
	})

	t.Run("top level unit gets head only", func(t *testing.T) {
		fx := newFixture(t)
		got, err := fx.orch.ResolveRecipients(ctx, lbs.ID, lbs.Name)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"akohler@library.ucla.edu",
			"doris@library.ucla.edu",
			"joshuagomez@library.ucla.edu",
		}, got)
		assert.NotContains(t, got, "grappone@library.ucla.edu")
		assert.NotContains(t, got, "sassoc@library.ucla.edu")
	})

	t.Run("production defaults", func(t *testing.T) {
		fx := newFixture(t)
		fx.cfg.Environment = config.EnvProd
		got, err := fx.orch.ResolveRecipients(ctx, lbs.ID, lbs.Name)
		require.NoError(t, err)
		assert.Equal(t, []string{"doris@library.ucla.edu", "jian@library.ucla.edu"}, got)
	})
}

func TestGenerateFilename(t *testing.T) {
	fx := newFixture(t)

	path := fx.orch.GenerateFilename(diit.Name, jan2021)
	assert.Equal(t, "DIIT_Software_Development_2021_01.xlsx", filepath.Base(path))
	assert.Equal(t, fx.cfg.Reports.Dir, filepath.Dir(path))
	assert.Equal(t, "LBS_2020_12.xlsx", ReportFilename("LBS", domain.NewPeriod(2020, 12)))
}

func TestRun_GeneratesReport(t *testing.T) {
	fx := newFixture(t)
	fx.expectDIIT()

	report, err := fx.orch.Run(context.Background(), RunRequest{Period: jan2021, Units: []domain.Unit{diit}})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.NotEmpty(t, report.RunID)

	out := report.Outcomes[0]
	assert.Equal(t, StatusCompleted, out.Status)
	assert.False(t, out.Delivered)
	assert.Equal(t, []string{"436000", "436000"}, out.Accounts)
	assert.Equal(t, filepath.Join(fx.cfg.Reports.Dir, "DIIT_Software_Development_2021_01.xlsx"), out.File)
	require.FileExists(t, out.File)

	f, err := excelize.OpenFile(out.File)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"436000", "436000-LM", formatter.Sub02SheetName}, f.GetSheetList())
	date, err := f.GetCellValue("436000", "A1")
	require.NoError(t, err)
	assert.Equal(t, "February 15, 2021", date)

	testutil.AssertLogContains(t, fx.logs, slog.LevelWarn, "No ledger data for account")
	testutil.AssertLogAttr(t, fx.logs, "account", "430500")
	testutil.AssertNoErrors(t, fx.logs)
	fx.sender.AssertNotCalled(t, "SendReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	fx.fetcher.AssertExpectations(t)
}

func TestRun_SendsAndRemovesReport(t *testing.T) {
	fx := newFixture(t)
	fx.expectDIIT()

	wantPath := fx.orch.GenerateFilename(diit.Name, jan2021)
	wantSummary := domain.ReportSummary{Unit: diit.Name, Year: 2021, MonthName: "January", Accounts: []string{"436000", "436000"}}
	wantRecipients := []string{
		"akohler@library.ucla.edu",
		"grappone@library.ucla.edu",
		"joshuagomez@library.ucla.edu",
		"sassoc@library.ucla.edu",
	}
	fx.sender.On("SendReport", mock.Anything, wantSummary, wantPath, wantRecipients).
		Run(func(args mock.Arguments) {
			assert.FileExists(t, args.String(2), "report must exist while sending")
		}).
		Return(nil).Once()

	report, err := fx.orch.Run(context.Background(), RunRequest{Period: jan2021, Units: []domain.Unit{diit}, SendEmail: true})
	require.NoError(t, err)

	out := report.Outcomes[0]
	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.Delivered)
	assert.NoFileExists(t, wantPath)
	fx.sender.AssertExpectations(t)
}

func TestRun_DeliveryFailureKeepsFileAndContinues(t *testing.T) {
	fx := newFixture(t)
	fx.expectDIIT()
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "432975", []string{"AD"}).
		Return([]domain.LedgerRow{row("432975", "AD", "19900", "03", "10", "0", "0", "0", "10")}, nil)

	sendErr := errors.New("535 5.7.8 Username and Password not accepted")
	fx.sender.On("SendReport", mock.Anything, mock.Anything, fx.orch.GenerateFilename(diit.Name, jan2021), mock.Anything).
		Return(sendErr).Once()
	fx.sender.On("SendReport", mock.Anything, mock.Anything, fx.orch.GenerateFilename("FTVA", jan2021), mock.Anything).
		Return(nil).Once()

	ftva := domain.Unit{ID: 27, Name: "FTVA"}
	report, err := fx.orch.Run(context.Background(), RunRequest{Period: jan2021, Units: []domain.Unit{diit, ftva}, SendEmail: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDeliveryFailure)
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, apperrors.DeliveryCredentials, apperrors.ClassifyDelivery(err))

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.FileExists(t, report.Outcomes[0].File)
	assert.Equal(t, StatusCompleted, report.Outcomes[1].Status)
	assert.Len(t, report.Failed(), 1)
	testutil.AssertLogContains(t, fx.logs, slog.LevelError, "Unit report failed")
}

func TestRun_FetchFailureFailsOnlyThatUnit(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "430500", []string{"AD"}).
		Return(nil, errors.New("read tcp: i/o timeout"))
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "432975", []string{"AD"}).
		Return([]domain.LedgerRow{row("432975", "AD", "19900", "03", "10", "0", "0", "0", "10")}, nil)

	report, err := fx.orch.Run(context.Background(), RunRequest{
		Period: jan2021,
		Units:  []domain.Unit{diit, {ID: 27, Name: "FTVA"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFetchFailure)

	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Empty(t, report.Outcomes[0].File)
	assert.Equal(t, StatusCompleted, report.Outcomes[1].Status)
}

func TestRun_FundExclusionForPrimaryUnit(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "432975", []string{"AD"}).
		Return([]domain.LedgerRow{row("432975", "AD", "19933", "03", "10", "0", "0", "0", "10")}, nil)

	report, err := fx.orch.Run(context.Background(), RunRequest{Period: jan2021, Units: []domain.Unit{{ID: 27, Name: "FTVA"}}})
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedEmpty, report.Outcomes[0].Status)
	testutil.AssertLogContains(t, fx.logs, slog.LevelWarn, "Account is empty")
}

func TestRun_EmptyUnitIsSkipped(t *testing.T) {
	fx := newFixture(t)
	fx.fetcher.On("FetchLedger", mock.Anything, jan2021, "439999", []string{"AD"}).
		Return([]domain.LedgerRow{row("439999", "AD", "19900", "00")}, nil)

	report, err := fx.orch.Run(context.Background(), RunRequest{Period: jan2021, Units: []domain.Unit{emptyUnit}, SendEmail: true})
	require.NoError(t, err)

	out := report.Outcomes[0]
	assert.Equal(t, StatusSkippedEmpty, out.Status)
	assert.Empty(t, out.File)
	assert.NoFileExists(t, fx.orch.GenerateFilename(emptyUnit.Name, jan2021))
	assert.Equal(t, 1, report.Count(StatusSkippedEmpty))
	fx.sender.AssertNotCalled(t, "SendReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	testutil.AssertLogContains(t, fx.logs, slog.LevelWarn, "All accounts empty")
}

func TestRun_ListRecipientsOnly(t *testing.T) {
	fx := newFixture(t)

	report, err := fx.orch.Run(context.Background(), RunRequest{
		Period:             jan2021,
		Units:              []domain.Unit{lbs, diit},
		ListRecipientsOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, StatusListed, report.Outcomes[0].Status)
	assert.Equal(t, []string{
		"akohler@library.ucla.edu",
		"doris@library.ucla.edu",
		"joshuagomez@library.ucla.edu",
	}, report.Outcomes[0].Recipients)
	assert.Equal(t, 2, report.Count(StatusListed))
	fx.fetcher.AssertNotCalled(t, "FetchLedger", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_OverrideRecipients(t *testing.T) {
	fx := newFixture(t)

	report, err := fx.orch.Run(context.Background(), RunRequest{
		Period:             jan2021,
		Units:              []domain.Unit{diit},
		OverrideRecipients: []string{" dev@example.com", "dev@example.com", "a@example.com"},
		ListRecipientsOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "dev@example.com"}, report.Outcomes[0].Recipients)
}

func TestRun_CancelledContextStops(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := fx.orch.Run(ctx, RunRequest{Period: jan2021, Units: []domain.Unit{diit}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Outcomes)
}

func TestListUnits(t *testing.T) {
	fx := newFixture(t)

	out, err := fx.orch.ListUnits(context.Background())
	require.NoError(t, err)

	want := "\nID | Name\n---|" + strings.Repeat("-", len("DIIT Software Development")) +
		"\n99 | All units" +
		"\n 3 | Communication" +
		"\n21 | DIIT Software Development" +
		"\n40 | Empty Unit" +
		"\n27 | FTVA" +
		"\n 1 | LBS"
	assert.Equal(t, want, out)
}

func TestCleanupReportsDir(t *testing.T) {
	fx := newFixture(t)
	dir := fx.cfg.Reports.Dir
	for _, name := range []string{".gitignore", "a.xlsx", "b.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	require.NoError(t, fx.orch.CleanupReportsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".gitignore", entries[0].Name())

	fx.cfg.Reports.Dir = filepath.Join(dir, "missing")
	assert.NoError(t, fx.orch.CleanupReportsDir())
}
