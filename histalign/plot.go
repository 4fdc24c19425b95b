package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/mrrlab/histalign/eigen"
)

var (
	plotCmd    = app.Command("plot", "plot probabilities of no change P(i->i|t)")
	plotModelF = plotCmd.Arg("model", "rate model (yaml or json)").Required().ExistingFile()
	plotTMax   = plotCmd.Flag("tmax", "maximum time").Default("2").Float64()
	plotPoints = plotCmd.Flag("points", "number of points").Default("100").Int()
	plotImage  = plotCmd.Flag("image", "image file name").Default("subprob.png").String()
)

func runPlot() {
	m := readModel(*plotModelF)
	em := eigen.New(m)

	if *plotPoints < 2 {
		log.Fatal("Need at least two points")
	}

	n := m.AlphabetSize()
	lines := make([]plotter.XYs, n)
	for i := range lines {
		lines[i] = make(plotter.XYs, *plotPoints)
	}
	for k := 0; k < *plotPoints; k++ {
		t := *plotTMax * float64(k) / float64(*plotPoints-1)
		p := em.SubProbMatrix(t)
		for i := 0; i < n; i++ {
			lines[i][k].X = t
			lines[i][k].Y = p.At(i, i)
		}
	}

	p := plot.New()
	p.Title.Text = "Probability of no change"
	p.X.Label.Text = "t"
	p.Y.Label.Text = "P(i->i|t)"

	vs := make([]interface{}, 0, 2*n)
	for i := 0; i < n; i++ {
		vs = append(vs, fmt.Sprintf("%c", m.Alphabet[i]), lines[i])
	}
	if err := plotutil.AddLines(p, vs...); err != nil {
		log.Fatal(err)
	}

	if err := p.Save(6*vg.Inch, 4*vg.Inch, *plotImage); err != nil {
		log.Fatal(err)
	}
	log.Noticef("Saved plot to %s", *plotImage)
}
