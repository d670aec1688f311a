// Package banner renders the startup banner.
package banner

import "fmt"

const art = `
  ┌─┐┌─┐┬ ┬┌─┐
  │  └─┐│││├─┤
  └─┘└─┘└┴┘┴ ┴
`

// Banner returns the banner text for the given version.
func Banner(version string) string {
	return fmt.Sprintf("%s  continuous-space word alignment %s\n\n", art, version)
}
