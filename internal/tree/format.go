package tree

import (
	"fmt"

	"trebleshot/pkg/utils"
)

// Formatter renders the numbers shown next to a node
type Formatter struct {
	PercentDecimals int
}

// DefaultFormatter prints whole percentages
var DefaultFormatter = Formatter{}

// Percent formats a 0..1 ratio
func (f Formatter) Percent(ratio float64) string {
	return fmt.Sprintf("%.*f%%", f.PercentDecimals, ratio*100)
}

// Size formats a byte count
func (f Formatter) Size(bytes int64) string {
	return utils.FormatFileSize(bytes)
}

// Devices formats a number of devices
func (f Formatter) Devices(n int) string {
	if n == 1 {
		return "1 device"
	}
	return fmt.Sprintf("%d devices", n)
}

// Files formats completed out of total files
func (f Formatter) Files(completed, total int) string {
	return fmt.Sprintf("%d of %d files", completed, total)
}
