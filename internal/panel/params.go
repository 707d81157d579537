package panel

// Params configures dividing-line detection.
type Params struct {
	// DarknessThreshold is the luma (0-255) below which a pixel counts as ink.
	DarknessThreshold float64 `yaml:"darkness_threshold" json:"darkness_threshold"`

	// DensityThreshold is the fraction of dark pixels a row or column needs
	// to count as a divider line.
	DensityThreshold float64 `yaml:"density_threshold" json:"density_threshold"`

	// MinPanelSize is the smallest band or panel extent (pixels) kept;
	// anything narrower is treated as noise between two dividers.
	MinPanelSize int `yaml:"min_panel_size" json:"min_panel_size"`
}

// DefaultParams returns default detection parameters.
// These are tuned for meme templates with black gutters or borders.
func DefaultParams() Params {
	return Params{
		DarknessThreshold: 60,
		DensityThreshold:  0.6,
		MinPanelSize:      40,
	}
}

// WithThresholds returns a copy of params with custom luma/density thresholds.
func (p Params) WithThresholds(darkness, density float64) Params {
	p.DarknessThreshold = darkness
	p.DensityThreshold = density
	return p
}

// WithMinPanelSize returns a copy of params with a custom minimum panel size.
func (p Params) WithMinPanelSize(px int) Params {
	if px < 1 {
		px = 1
	}
	p.MinPanelSize = px
	return p
}
