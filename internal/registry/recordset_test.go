package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
insurance:
  valid:
    - plate_number: NAB 4521
      policy_number: CTPL-2024-000981
      provider: Malayan Insurance
      expires_on: 2026-01-15
  problem:
    - plate_number: FAK 0001
      status: FRAUDULENT
hpg:
  problem:
    - chassis_number: MROFR22G700999999
      status: STOLEN
`

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	fx, err := LoadFixture(path)
	require.NoError(t, err)
	require.NotNil(t, fx.Insurance)
	require.Len(t, fx.Insurance.Valid, 1)
	assert.Equal(t, "2026-01-15", fx.Insurance.Valid[0].ExpiresOn)
	assert.Nil(t, fx.Emission)

	srcs := fx.Sources()
	h, err := srcs[HPG].Find(context.Background(), Claim{ChassisNumber: "MROFR22G700999999"}.Normalized())
	require.NoError(t, err)
	require.NotNil(t, h.Problem)
	assert.Equal(t, ProblemStolen, h.Problem.Status)

	h, err = srcs[Emission].Find(context.Background(), Claim{PlateNumber: "NAB 4521"})
	require.NoError(t, err)
	assert.Nil(t, h.Problem)
	assert.Nil(t, h.Valid)
}

func TestParseFixture_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown registry": "lto:\n  valid: []\n",
		"unknown set":      "insurance:\n  maybe: []\n",
		"identifier list":  "insurance:\n  valid:\n    - plate_number: [ABC, 1234]\n",
		"no identifier":    "hpg:\n  problem:\n    - status: STOLEN\n",
		"bad expiry":       "insurance:\n  valid:\n    - plate_number: ABC 1234\n      expires_on: soon\n",
		"not yaml":         "insurance: [unclosed\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixture([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseFixture_KeepsScalarsLiteral(t *testing.T) {
	fx, err := ParseFixture([]byte("insurance:\n  valid:\n    - plate_number: ABC 1234\n      policy_number: 20240001\n      expires_on: 2026-01-15\n      provider: 007\n"))
	require.NoError(t, err)
	require.NotNil(t, fx.Insurance)
	require.Len(t, fx.Insurance.Valid, 1)
	r := fx.Insurance.Valid[0]
	assert.Equal(t, "20240001", r.PolicyNumber)
	assert.Equal(t, "2026-01-15", r.ExpiresOn)
	assert.Equal(t, "007", r.Provider)

	exp, ok := r.Expiry()
	require.True(t, ok)
	assert.Equal(t, 15, exp.Day())
}

func TestParseFixture_Empty(t *testing.T) {
	fx, err := ParseFixture(nil)
	require.NoError(t, err)
	assert.Nil(t, fx.Insurance)
	assert.Len(t, fx.Sources(), 3)
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
