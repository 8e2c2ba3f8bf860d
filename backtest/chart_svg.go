package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strings"
)

// SVGChartOptions sizes the rendered equity chart.
type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 420
	}
	return o
}

// RenderEquitySVG draws the portfolio-value curve of a result as a dark-theme
// SVG line chart with a horizontal grid and date labels.
func RenderEquitySVG(title string, res *Result, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	values := res.PortfolioValues
	stamps := res.Timestamps
	if len(values) < 2 {
		return nil, fmt.Errorf("not enough samples: %d", len(values))
	}

	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) {
		return nil, fmt.Errorf("invalid value range")
	}
	if maxV == minV {
		maxV = minV + 1
	}
	pad := (maxV - minV) * 0.05
	minV -= pad
	maxV += pad

	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 80.0
	mRight := 20.0
	mTop := 28.0
	mBottom := 40.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}

	xAt := func(i int) float64 {
		return mLeft + float64(i)/float64(len(values)-1)*plotW
	}
	yAt := func(v float64) float64 {
		r := (v - minV) / (maxV - minV)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	line := "#38bdf8"
	txt := "rgba(255,255,255,0.85)"

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		opt.Width, opt.Height, opt.Width, opt.Height)
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`+"\n", opt.Width, opt.Height, bg)
	fmt.Fprintf(&buf, `<text x="%.1f" y="18" fill="%s" font-size="14" font-family="monospace">%s</text>`+"\n",
		mLeft, txt, html.EscapeString(title))

	// Horizontal grid with value labels.
	const gridLines = 4
	for g := 0; g <= gridLines; g++ {
		v := minV + (maxV-minV)*float64(g)/gridLines
		y := yAt(v)
		fmt.Fprintf(&buf, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`+"\n",
			mLeft, y, w-mRight, y, grid)
		fmt.Fprintf(&buf, `<text x="%.1f" y="%.1f" fill="%s" font-size="11" font-family="monospace" text-anchor="end">%.2f</text>`+"\n",
			mLeft-6, y+4, txt, v)
	}

	// Equity polyline.
	var path strings.Builder
	for i, v := range values {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xAt(i), yAt(v))
	}
	fmt.Fprintf(&buf, `<path d="%s" fill="none" stroke="%s" stroke-width="1.5"/>`+"\n",
		strings.TrimSpace(path.String()), line)

	// First / middle / last timestamps on the x axis.
	if len(stamps) == len(values) && len(stamps) > 0 {
		marks := []int{0, len(stamps) / 2, len(stamps) - 1}
		for _, i := range marks {
			label := stamps[i]
			if len(label) > 10 {
				label = label[:10]
			}
			fmt.Fprintf(&buf, `<text x="%.1f" y="%.1f" fill="%s" font-size="11" font-family="monospace" text-anchor="middle">%s</text>`+"\n",
				xAt(i), h-mBottom+20, txt, html.EscapeString(label))
		}
	}

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}
