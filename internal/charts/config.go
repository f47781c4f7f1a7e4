package charts

import (
	"errors"
	"fmt"
)

// Kind selects how a chart is drawn.
type Kind string

const (
	KindBar     Kind = "bar"     // one series as horizontal bars
	KindStacked Kind = "stacked" // several series stacked per label
	KindLine    Kind = "line"    // one sparkline per series
	KindMatrix  Kind = "matrix"  // a grid of counts, one row per series
	KindRadar   Kind = "radar"   // one series of 0-100 scores
)

// ErrDestroyed is returned by Update on a destroyed widget.
var ErrDestroyed = errors.New("chart widget destroyed")

// ErrKindChanged is returned by Update when the new config draws a different kind.
var ErrKindChanged = errors.New("chart kind changed")

// Series is one named row of values aligned with Config.Labels.
type Series struct {
	Name   string
	Values []int
}

// Config is everything a widget needs to draw itself.
type Config struct {
	Kind   Kind
	Title  string
	Labels []string
	Series []Series
	Theme  Theme
	// Note is drawn under the chart in the muted colour.
	Note string
}

// Validate checks that every series lines up with the labels.
func (c Config) Validate() error {
	switch c.Kind {
	case KindBar, KindStacked, KindLine, KindMatrix, KindRadar:
	default:
		return fmt.Errorf("unknown chart kind %q", c.Kind)
	}
	if len(c.Series) == 0 {
		return errors.New("chart has no series")
	}
	if (c.Kind == KindBar || c.Kind == KindRadar) && len(c.Series) != 1 {
		return fmt.Errorf("%s chart takes one series, got %d", c.Kind, len(c.Series))
	}
	for _, s := range c.Series {
		if len(s.Values) != len(c.Labels) {
			return fmt.Errorf("series %q has %d values for %d labels", s.Name, len(s.Values), len(c.Labels))
		}
	}
	return nil
}
