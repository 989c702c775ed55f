package gridfile_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/gridflow/pkg/gridfile"
)

const sampleCase = `
name: sample
sbase_mva: 100
freq_hz: 60
buses:
  - id: slack
    vnom_kv: 230
    slack: true
  - id: pv
    vnom_kv: 230
  - id: pq
    vnom_kv: 230
branches:
  - id: Br1
    from: slack
    to: pv
    r: 0.01
    x: 0.1
    rate_mva: 120
  - id: Br2
    from: pv
    to: pq
    r: 0.015
    x: 0.12
    rate_mva: 100
loads:
  - id: Ld1
    bus: pq
    p_mw: 50
    q_mvar: 20
generators:
  - id: G1
    bus: slack
    vset: 1.0
  - id: G2
    bus: pv
    p_mw: 40
    vset: 1.02
    qmin_mvar: -20
    qmax_mvar: 20
shunts:
  - id: Sh1
    bus: pq
    b_mvar: 5
`

func TestDecodeBuildsIndexedGrid(t *testing.T) {
	g, err := gridfile.Decode(strings.NewReader(sampleCase))
	require.NoError(t, err)

	require.Equal(t, "sample", g.Name)
	require.Equal(t, 100.0, g.SbaseMVA)
	require.Len(t, g.Buses, 3)
	require.Len(t, g.Branches, 2)
	require.Len(t, g.Loads, 1)
	require.Len(t, g.Generators, 2)
	require.Len(t, g.Shunts, 1)

	idx, ok := g.BusIndexOf("pq")
	require.True(t, ok)
	require.Equal(t, 2, idx)

	require.Equal(t, idx, g.Loads[0].Bus)
	require.True(t, g.Buses[0].IsSlack)

	// Shunt admittance is stored per-unit on the system base.
	require.InDelta(t, 0.05, imag(g.Shunts[0].Y), 1e-9)
}

func TestDecodeDefaultsSbaseAndFreq(t *testing.T) {
	doc := `
buses:
  - id: a
`
	g, err := gridfile.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 100.0, g.SbaseMVA)
	require.Equal(t, 50.0, g.FreqHz)
}

func TestDecodeRejectsUnknownBranchBus(t *testing.T) {
	doc := `
buses:
  - id: a
branches:
  - id: Br1
    from: a
    to: ghost
    r: 0.01
    x: 0.1
`
	_, err := gridfile.Decode(strings.NewReader(doc))
	require.Error(t, err)
}

func TestDecodeActiveDefaultsTrueWhenOmitted(t *testing.T) {
	doc := `
buses:
  - id: a
  - id: b
branches:
  - id: Br1
    from: a
    to: b
    r: 0.01
    x: 0.1
`
	g, err := gridfile.Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.True(t, g.Buses[0].Active)
	require.True(t, g.Branches[0].Active)
}
