package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
)

var recordCols = []string{"plate_number", "policy_number", "engine_number", "chassis_number", "status", "owner_name", "provider", "expires_on"}

func TestPostgresSource_ValidRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("kind = 'problem'").
		WithArgs("insurance", "NAB 4521", "", "").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("kind = 'valid'").
		WithArgs("insurance", "NAB 4521").
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow("NAB 4521", "CTPL-2024-000981", "", "", "ACTIVE", "MARIA SANTOS", "Malayan", "2024-03-01"))

	m := NewMatcher(Insurance, NewPostgresSource(Insurance, mock, quietLogger()), quietLogger(),
		WithClock(func() time.Time { return fixedNow }))
	res, err := m.Lookup(context.Background(), Claim{PlateNumber: "nab 4521"})
	require.NoError(t, err)

	assert.Equal(t, constants.RecordExpired, res.Status)
	assert.False(t, res.CanApprove)
	assert.Equal(t, "MARIA SANTOS", res.Record.OwnerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_ProblemRecordByEngine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("kind = 'problem'").
		WithArgs("hpg", "", "1KD1234567", "").
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow("", "", "1KD 1234567", "", ProblemStolen, "", "", ""))

	h, err := NewPostgresSource(HPG, mock, quietLogger()).Find(context.Background(), Claim{EngineNumber: "1KD1234567"})
	require.NoError(t, err)
	require.NotNil(t, h.Problem)
	assert.Equal(t, ProblemStolen, h.Problem.Status)
	assert.Nil(t, h.Valid, "no plate means no valid-set query")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("relation \"registry_records\" does not exist")
	mock.ExpectQuery("kind = 'problem'").
		WithArgs("emission", "ABC 1234", "", "").
		WillReturnError(boom)

	_, err = NewPostgresSource(Emission, mock, quietLogger()).Find(context.Background(), Claim{PlateNumber: "ABC 1234"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
