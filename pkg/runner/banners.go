package runner

import (
	"github.com/projectdiscovery/gologger"
)

const banner = `
    _ __
   (_) /_____  _  __
  / / //_/ _ \| |/_/
 / / ,< /  __/>  <
/_/_/|_|\___/_/|_|
`

// Version is the current version of ikex
const Version = `v0.0.1`

// showBanner is used to show the banner to the user
func showBanner() {
	gologger.Print().Msgf("%s\n", banner)
	gologger.Print().Msgf("\t\tprojectdiscovery.io\n\n")
}
