//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// bannerTheme is the dark default with the banner's star and text colours
// and a larger heading for the penalty label.
type bannerTheme struct {
	fyne.Theme
}

func newBannerTheme() fyne.Theme {
	return bannerTheme{Theme: theme.DefaultTheme()}
}

func (b bannerTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground, theme.ColorNameOverlayBackground:
		return color.NRGBA{R: 18, G: 18, B: 18, A: 255}
	case theme.ColorNameForeground:
		return textColor
	case theme.ColorNamePrimary:
		return starActive
	case theme.ColorNameDisabled:
		return starInactive
	}
	return b.Theme.Color(name, theme.VariantDark)
}

func (b bannerTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameHeadingText {
		return 2 * b.Theme.Size(theme.SizeNameText)
	}
	return b.Theme.Size(name)
}
