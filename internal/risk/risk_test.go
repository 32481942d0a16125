package risk

import (
	"adaptive-agent-go/internal/models"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Check(t *testing.T) {
	gate := NewGate(models.RiskConfig{})

	testCases := []struct {
		name     string
		signal   models.Signal
		expected models.Reason
	}{
		{"within bounds", models.Signal{Size: 0.05, Slippage: 0.01}, ""},
		{"at the limits", models.Signal{Size: 0.10, Slippage: 0.02}, ""},
		{"size exceeded", models.Signal{Size: 0.15, Slippage: 0.01}, models.ReasonMaxPositionSizeExceeded},
		{"slippage exceeded", models.Signal{Size: 0.05, Slippage: 0.03}, models.ReasonMaxSlippageExceeded},
		{"both exceeded reports size", models.Signal{Size: 0.5, Slippage: 0.5}, models.ReasonMaxPositionSizeExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := gate.Check(tc.signal)
			if tc.expected == "" {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, tc.expected, v.Kind)
		})
	}
}

func TestGate_ViolationIsError(t *testing.T) {
	gate := NewGate(models.RiskConfig{MaxPositionSize: 0.2, MaxSlippage: 0.05})
	var err error = gate.Check(models.Signal{Size: 0.3})

	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, 0.2, v.Limit)
	assert.Equal(t, 0.3, v.Actual)
	assert.Contains(t, err.Error(), string(models.ReasonMaxPositionSizeExceeded))
}

func TestGate_Pure(t *testing.T) {
	gate := NewGate(models.RiskConfig{})
	signal := models.Signal{Size: 0.15, Slippage: 0.01}
	first := gate.Check(signal)
	second := gate.Check(signal)
	assert.Equal(t, first, second)
}
