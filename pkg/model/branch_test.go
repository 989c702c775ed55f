package model_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/model"
)

func TestNewBranchDefaultsToUnityTap(t *testing.T) {
	b := model.NewBranch("B1", 0, 1, 0.01, 0.1)
	require.True(t, b.Active)
	require.Equal(t, model.Line, b.Kind)
	require.InDelta(t, 1.0, cmplx.Abs(b.Tap()), 1e-12)
	require.InDelta(t, 0.0, cmplx.Phase(b.Tap()), 1e-12)
}

func TestBranchTapAppliesAngle(t *testing.T) {
	b := model.NewBranch("T1", 0, 1, 0.01, 0.1)
	b.TapModule = 1.05
	b.TapAngle = math.Pi / 6

	tap := b.Tap()
	require.InDelta(t, 1.05, cmplx.Abs(tap), 1e-9)
	require.InDelta(t, -math.Pi/6, cmplx.Phase(tap), 1e-9)
}

func TestBranchZeroImpedance(t *testing.T) {
	b := model.NewBranch("B1", 0, 1, 0, 0)
	require.True(t, b.ZeroImpedance())

	b.X = 0.01
	require.False(t, b.ZeroImpedance())
}

func TestBranchZAndYsh(t *testing.T) {
	b := model.NewBranch("B1", 0, 1, 0.02, 0.2)
	b.G, b.B = 0.0, 0.04
	require.Equal(t, complex(0.02, 0.2), b.Z())
	require.Equal(t, complex(0.0, 0.04), b.Ysh())
}
