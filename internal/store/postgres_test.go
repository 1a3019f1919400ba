package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"routerwatch/internal/news"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo, err := NewWithPool(mock, "news", 3)
	require.NoError(t, err)
	return repo, mock
}

func sampleItem(title string) news.Item {
	return news.Item{
		Title:       title,
		URL:         "https://example.com/" + title,
		PublishDate: "2024-06-07",
		Source:      "Google News (EN)",
		Description: "desc",
	}
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "news", 3)
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "news; DROP TABLE news", 3)
	require.Error(t, err)

	repo, err := NewWithPool(mock, "", 0)
	require.NoError(t, err)
	require.Equal(t, "news", repo.table)
	require.Equal(t, 3, repo.threshold)
}

func TestInsertCountsOnlyNewRows(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	fresh := sampleItem("fresh")
	dup := sampleItem("dup")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO news").
		WithArgs(fresh.Title, fresh.URL, fresh.PublishDate, fresh.Source, fresh.Description, "N", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO news").
		WithArgs(dup.Title, dup.URL, dup.PublishDate, dup.Source, dup.Description, "N", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	inserted, err := repo.Insert(context.Background(), []news.Item{fresh, dup})
	require.NoError(t, err)
	require.Equal(t, 1, inserted, "the duplicate is absorbed silently")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	inserted, err := repo.Insert(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRollsBackOnConnectivityFailure(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	item := sampleItem("fresh")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO news").
		WithArgs(item.Title, item.URL, item.PublishDate, item.Source, item.Description, "N", 0).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	inserted, err := repo.Insert(context.Background(), []news.Item{item})
	require.Error(t, err)
	require.Zero(t, inserted, "a failed batch reports zero net effect")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingOrdersByPublishDateThenID(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	rows := pgxmock.NewRows([]string{
		"id", "title", "url", "publish_date", "source", "description", "status", "fail_count",
	}).
		AddRow(int64(2), "older", "https://example.com/2", "2024-06-01", "src", "d", "N", 0).
		AddRow(int64(1), "newer", "https://example.com/1", "2024-06-05", "src", "d", "N", 1)

	mock.ExpectQuery("SELECT id, title, url, publish_date, source, description, status, fail_count FROM news").
		WithArgs("N").
		WillReturnRows(rows)

	items, err := repo.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].ID)
	require.Equal(t, news.StatusNew, items[0].Status)
	require.Equal(t, 1, items[1].FailCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSubmittedOnlyTouchesNewItems(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	// The WHERE clause pins the transition to status 'N', so repeating
	// the call on a terminal item matches zero rows and stays harmless.
	mock.ExpectExec("UPDATE news SET status").
		WithArgs("S", int64(7), "N").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkSubmitted(context.Background(), 7))

	mock.ExpectExec("UPDATE news SET status").
		WithArgs("S", int64(7), "N").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.MarkSubmitted(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureBelowThreshold(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE news SET fail_count").
		WithArgs(3, "E", int64(7), "N").
		WillReturnRows(pgxmock.NewRows([]string{"fail_count", "status"}).AddRow(2, "N"))

	result, err := repo.RecordFailure(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, result.FailCount)
	require.Equal(t, news.StatusNew, result.Status, "below threshold the item stays retryable")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureEscalatesAtThreshold(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE news SET fail_count").
		WithArgs(3, "E", int64(7), "N").
		WillReturnRows(pgxmock.NewRows([]string{"fail_count", "status"}).AddRow(3, "E"))

	result, err := repo.RecordFailure(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 3, result.FailCount)
	require.Equal(t, news.StatusError, result.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureIsNoopOnTerminalItems(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE news SET fail_count").
		WithArgs(3, "E", int64(7), "N").
		WillReturnRows(pgxmock.NewRows([]string{"fail_count", "status"}))

	result, err := repo.RecordFailure(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, news.FailureResult{}, result)
	require.NoError(t, mock.ExpectationsWereMet())
}
