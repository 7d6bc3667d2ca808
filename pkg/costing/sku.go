package costing

import (
	"strings"

	"github.com/dukex/costura/pkg/models"
)

// GenerateSKU builds the variant code {style}-{color}-{size} in upper case. The color
// fragment is the first three hex digits of the color code, or the first three
// letters of its name when the color has no code.
func GenerateSKU(styleCode string, color *models.Color, sizeCode string) string {
	return strings.ToUpper(styleCode + "-" + colorFragment(color) + "-" + sizeCode)
}

func colorFragment(color *models.Color) string {
	if color == nil {
		return ""
	}

	if hex := strings.TrimPrefix(strings.TrimSpace(color.HexCode), "#"); hex != "" {
		return firstRunes(hex, 3)
	}

	return firstRunes(strings.TrimSpace(color.Name), 3)
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}

	return string(runes)
}
