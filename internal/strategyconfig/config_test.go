package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vantage/backend/internal/contracts"
)

func TestDefaults_Valid(t *testing.T) {
	require.NoError(t, Validate(DefaultSEPA()))
	require.NoError(t, Validate(DefaultQM()))
}

func TestDefaults_StrategyIdentity(t *testing.T) {
	sepa := DefaultSEPA()
	qm := DefaultQM()

	assert.Equal(t, contracts.StrategySEPA, sepa.Meta.Strategy)
	assert.Equal(t, contracts.StrategyQM, qm.Meta.Strategy)
	assert.False(t, sepa.Meta.BlockInBear)
	assert.True(t, qm.Meta.BlockInBear, "QM sits out bear markets")
}

func TestSizeForRating(t *testing.T) {
	cfg := DefaultSEPA()

	min, max := cfg.SizeForRating(5.5)
	assert.Equal(t, 20.0, min)
	assert.Equal(t, 25.0, max)

	min, max = cfg.SizeForRating(4.0)
	assert.Equal(t, 15.0, min)
	assert.Equal(t, 20.0, max)

	min, max = cfg.SizeForRating(2.0)
	assert.Zero(t, min)
	assert.Zero(t, max)
}

func TestPartialSellFraction_HigherConvictionSellsLess(t *testing.T) {
	risk := defaultRisk()

	assert.InDelta(t, 0.25, risk.PartialSellFraction(5.5), 1e-9)
	assert.InDelta(t, 0.33, risk.PartialSellFraction(4.5), 1e-9)
	assert.InDelta(t, 0.50, risk.PartialSellFraction(3.0), 1e-9)
	assert.Less(t, risk.PartialSellFraction(5.5), risk.PartialSellFraction(3.0))
}

func TestLoadOrDefault_MissingFileFallsBack(t *testing.T) {
	cfg, err := LoadOrDefault(t.TempDir(), contracts.StrategySEPA)
	require.NoError(t, err)
	assert.Equal(t, contracts.StrategySEPA, cfg.Meta.Strategy)

	_, err = LoadOrDefault(t.TempDir(), contracts.Strategy("XX"))
	require.Error(t, err)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sepa.yaml")
	yaml := `
meta:
  strategy: SEPA
  version: "1.0.0"
  block_in_bears: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	require.Error(t, err, "typo'd field must fail, not silently default")
}

func TestValidate_RatingLadder(t *testing.T) {
	cfg := DefaultSEPA()
	cfg.Scoring.BuyMin = 5.5 // above strong_buy_min

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating ladder")
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(DefaultSEPA())
	require.NoError(t, err)
	h2, err := Hash(DefaultSEPA())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := Hash(DefaultQM())
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
