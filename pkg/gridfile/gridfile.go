// Package gridfile decodes a declarative YAML case description into
// pkg/model.Grid: a fixed top-level document with a flat device list per
// kind, structured data rather than a line-oriented grammar since a
// bus/branch case file is naturally tabular.
package gridfile

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edp1096/gridflow/internal/consts"
	"github.com/edp1096/gridflow/pkg/model"
)

type document struct {
	Name       string         `yaml:"name"`
	SbaseMVA   float64        `yaml:"sbase_mva"`
	FreqHz     float64        `yaml:"freq_hz"`
	Buses      []busDoc       `yaml:"buses"`
	Branches   []branchDoc    `yaml:"branches"`
	Loads      []loadDoc      `yaml:"loads"`
	Generators []genDoc       `yaml:"generators"`
	Batteries  []batteryDoc   `yaml:"batteries"`
	StaticGens []staticGenDoc `yaml:"static_generators"`
	Shunts     []shuntDoc     `yaml:"shunts"`
}

type busDoc struct {
	ID     string  `yaml:"id"`
	VNomKV float64 `yaml:"vnom_kv"`
	VMin   float64 `yaml:"vmin"`
	VMax   float64 `yaml:"vmax"`
	Slack  bool    `yaml:"slack"`
	Active *bool   `yaml:"active"`
}

type branchDoc struct {
	ID        string  `yaml:"id"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Kind      string  `yaml:"kind"`
	R         float64 `yaml:"r"`
	X         float64 `yaml:"x"`
	G         float64 `yaml:"g"`
	B         float64 `yaml:"b"`
	TapModule float64 `yaml:"tap_module"`
	TapAngle  float64 `yaml:"tap_angle"`
	RateMVA   float64 `yaml:"rate_mva"`
	Active    *bool   `yaml:"active"`
}

type loadDoc struct {
	ID    string  `yaml:"id"`
	Bus   string  `yaml:"bus"`
	PMW   float64 `yaml:"p_mw"`
	QMVAr float64 `yaml:"q_mvar"`
	// ZR/ZX/IR/IX are per-unit on the system base (not physical ohms/kA),
	// matching pkg/compile/assemble.go's direct, unscaled use of Zc/Ic.
	ZR     float64 `yaml:"z_r_pu"`
	ZX     float64 `yaml:"z_x_pu"`
	IR     float64 `yaml:"i_r_pu"`
	IX     float64 `yaml:"i_x_pu"`
	Active *bool   `yaml:"active"`
}

type genDoc struct {
	ID       string  `yaml:"id"`
	Bus      string  `yaml:"bus"`
	PMW      float64 `yaml:"p_mw"`
	Vset     float64 `yaml:"vset"`
	QminMVAr float64 `yaml:"qmin_mvar"`
	QmaxMVAr float64 `yaml:"qmax_mvar"`
	SnomMVA  float64 `yaml:"snom_mva"`
	Active   *bool   `yaml:"active"`
}

type batteryDoc struct {
	genDoc  `yaml:",inline"`
	EnomMWh float64 `yaml:"enom_mwh"`
	DispatchStorage bool `yaml:"dispatch_storage"`
}

type staticGenDoc struct {
	ID     string  `yaml:"id"`
	Bus    string  `yaml:"bus"`
	PMW    float64 `yaml:"p_mw"`
	QMVAr  float64 `yaml:"q_mvar"`
	Active *bool   `yaml:"active"`
}

type shuntDoc struct {
	ID      string  `yaml:"id"`
	Bus     string  `yaml:"bus"`
	GMVAr   float64 `yaml:"g_mvar"` // conductive part at 1pu voltage
	BMVAr   float64 `yaml:"b_mvar"` // susceptive part at 1pu voltage
	Active  *bool   `yaml:"active"`
}

func activeOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Decode reads a case document from r and returns an indexed model.Grid.
func Decode(r io.Reader) (*model.Grid, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("gridfile: decode: %w", err)
	}
	return build(&doc)
}

// Load opens path and decodes it as a case document.
func Load(path string) (*model.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gridfile: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

func build(doc *document) (*model.Grid, error) {
	sbase := doc.SbaseMVA
	if sbase == 0 {
		sbase = consts.DefaultSbaseMVA
	}
	freq := doc.FreqHz
	if freq == 0 {
		freq = consts.DefaultFreqHz
	}

	g := &model.Grid{Name: doc.Name, SbaseMVA: sbase, FreqHz: freq}

	for _, b := range doc.Buses {
		nb := model.NewBus(b.ID, b.VNomKV)
		if b.VMin != 0 {
			nb.VMin = b.VMin
		}
		if b.VMax != 0 {
			nb.VMax = b.VMax
		}
		nb.IsSlack = b.Slack
		nb.Active = activeOr(b.Active, true)
		g.Buses = append(g.Buses, nb)
	}

	for _, br := range doc.Branches {
		fromIdx, toIdx, err := g.BranchEndpoints(br.From, br.To)
		if err != nil {
			return nil, fmt.Errorf("gridfile: branch %s: %w", br.ID, err)
		}
		nbr := model.NewBranch(br.ID, fromIdx, toIdx, br.R, br.X)
		nbr.G = br.G
		nbr.B = br.B
		if br.TapModule != 0 {
			nbr.TapModule = br.TapModule
		}
		nbr.TapAngle = br.TapAngle
		nbr.RateMVA = br.RateMVA
		nbr.Active = activeOr(br.Active, true)
		switch br.Kind {
		case "transformer":
			nbr.Kind = model.Transformer
		case "dc_line":
			nbr.Kind = model.DCLine
		case "vsc":
			nbr.Kind = model.VSC
		case "upfc":
			nbr.Kind = model.UPFC
		}
		g.Branches = append(g.Branches, nbr)
	}

	for _, l := range doc.Loads {
		g.Loads = append(g.Loads, model.Load{
			ID: l.ID, BusID: l.Bus,
			Sc:     complex(l.PMW, l.QMVAr),
			Zc:     complex(l.ZR, l.ZX),
			Ic:     complex(l.IR, l.IX),
			Active: activeOr(l.Active, true),
		})
	}
	for _, gen := range doc.Generators {
		g.Generators = append(g.Generators, model.ControlledGenerator{
			ID: gen.ID, BusID: gen.Bus,
			P: gen.PMW, Vset: gen.Vset,
			Qmin: gen.QminMVAr, Qmax: gen.QmaxMVAr, Snom: gen.SnomMVA,
			Active: activeOr(gen.Active, true),
		})
	}
	for _, bat := range doc.Batteries {
		g.Batteries = append(g.Batteries, model.Battery{
			ControlledGenerator: model.ControlledGenerator{
				ID: bat.ID, BusID: bat.Bus,
				P: bat.PMW, Vset: bat.Vset,
				Qmin: bat.QminMVAr, Qmax: bat.QmaxMVAr, Snom: bat.SnomMVA,
				Active: activeOr(bat.Active, true),
			},
			Enom:            bat.EnomMWh,
			DispatchStorage: bat.DispatchStorage,
		})
	}
	for _, sg := range doc.StaticGens {
		g.StaticGenerators = append(g.StaticGenerators, model.StaticGenerator{
			ID: sg.ID, BusID: sg.Bus, S: complex(sg.PMW, sg.QMVAr),
			Active: activeOr(sg.Active, true),
		})
	}
	for _, sh := range doc.Shunts {
		// Y is stored per-unit on the system base, consistent with Ybus's
		// scale (pkg/compile/assemble.go adds it in directly, unscaled).
		g.Shunts = append(g.Shunts, model.Shunt{
			ID: sh.ID, BusID: sh.Bus, Y: complex(sh.GMVAr, sh.BMVAr) / complex(sbase, 0),
			Active: activeOr(sh.Active, true),
		})
	}

	if err := g.Index(); err != nil {
		return nil, fmt.Errorf("gridfile: %w", err)
	}
	return g, nil
}
