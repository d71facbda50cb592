package sender

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"qdbreport/internal/config"
	"qdbreport/internal/shared/testutil"
	"qdbreport/pkg/contracts/domain"
)

type fakeClient struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

var summary = domain.ReportSummary{
	Unit:      "DIIT Software Development",
	Year:      2021,
	MonthName: "January",
	Accounts:  []string{"436000", "430500"},
}

func testMailConfig() config.MailConfig {
	cfg := config.Default().Mail
	cfg.Host = "smtp.example.edu"
	cfg.From = "reports@example.edu"
	cfg.Closer = "\n\nThanks"
	return cfg
}

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DIIT_Software_Development_2021_01.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0o644))
	return path
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "January 2021 Financial Report: DIIT Software Development", Subject(summary))
}

func TestBody(t *testing.T) {
	want := "Please find attached the general ledger summary report for January 2021 for " +
		"DIIT Software Development, which covers the following accounts:\n436000\n430500\n\nThanks"
	assert.Equal(t, want, Body(summary, "\n\nThanks"))

	empty := summary
	empty.Accounts = nil
	assert.Equal(t, "Please find attached the general ledger summary report for January 2021 for "+
		"DIIT Software Development, which covers the following accounts:", Body(empty, ""))
}

func TestSendReport(t *testing.T) {
	client := &fakeClient{}
	logger, handler := testutil.NewTestLogger(t)
	s := newSMTP(testMailConfig(), client, logger)
	path := writeReport(t)

	err := s.SendReport(context.Background(), summary, path, []string{"a@example.edu", "b@example.edu"})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	m := client.sent[0]
	assert.Equal(t, []string{Subject(summary)}, m.GetGenHeader(mail.HeaderSubject))

	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.edu", "b@example.edu"}, rcpts)

	attachments := m.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "DIIT_Software_Development_2021_01.xlsx", attachments[0].Name)

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Report mailed")
}

func TestSendReport_Errors(t *testing.T) {
	path := writeReport(t)

	t.Run("no recipients", func(t *testing.T) {
		s := newSMTP(testMailConfig(), &fakeClient{}, nil)
		assert.ErrorContains(t, s.SendReport(context.Background(), summary, path, nil), "no recipients")
	})

	t.Run("missing attachment", func(t *testing.T) {
		client := &fakeClient{}
		s := newSMTP(testMailConfig(), client, nil)
		err := s.SendReport(context.Background(), summary, filepath.Join(t.TempDir(), "gone.xlsx"), []string{"a@example.edu"})
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Empty(t, client.sent)
	})

	t.Run("bad recipient", func(t *testing.T) {
		s := newSMTP(testMailConfig(), &fakeClient{}, nil)
		err := s.SendReport(context.Background(), summary, path, []string{"not an address"})
		assert.ErrorContains(t, err, "invalid recipient list")
	})

	t.Run("relay failure", func(t *testing.T) {
		relayErr := errors.New("535 5.7.8 authentication failed")
		s := newSMTP(testMailConfig(), &fakeClient{err: relayErr}, nil)
		err := s.SendReport(context.Background(), summary, path, []string{"a@example.edu"})
		assert.ErrorIs(t, err, relayErr)
	})
}

func TestSendReport_RateLimited(t *testing.T) {
	cfg := testMailConfig()
	cfg.RatePerMinute = 1
	client := &fakeClient{}
	s := newSMTP(cfg, client, nil)
	path := writeReport(t)

	require.NoError(t, s.SendReport(context.Background(), summary, path, []string{"a@example.edu"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.SendReport(ctx, summary, path, []string{"a@example.edu"})
	assert.ErrorContains(t, err, "waiting for send slot")
	assert.Len(t, client.sent, 1)
}

func TestNew(t *testing.T) {
	cfg := testMailConfig()

	s, err := New(cfg, config.EnvProd, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.client)

	cfg.Password = "secret"
	_, err = New(cfg, config.EnvDev, nil)
	require.NoError(t, err)

	noHost := testMailConfig()
	noHost.Host = ""
	_, err = New(noHost, config.EnvProd, nil)
	assert.ErrorContains(t, err, "mail host")

	noFrom := testMailConfig()
	noFrom.From = ""
	_, err = New(noFrom, config.EnvProd, nil)
	assert.ErrorContains(t, err, "from address")
}
