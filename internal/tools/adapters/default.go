package adapters

import "github.com/reconpilot/reconpilotd/internal/tools"

// RegisterDefaults wires every built-in adapter into r, in the same
// order the tools were introduced: OSINT and DNS first, then subdomain
// enumeration, then port scanning, then HTTP fingerprinting, then
// vulnerability scanning.
func RegisterDefaults(r *tools.Registry) {
	for _, a := range []tools.Adapter{
		NewWhois(),
		NewDnsrecon(),
		NewDnsx(),
		NewSubfinder(),
		NewAmass(),
		NewAssetfinder(),
		NewNmap(),
		NewMasscan(),
		NewRustscan(),
		NewHttpx(),
		NewWhatweb(),
		NewWafw00f(),
		NewNuclei(),
		NewNikto(),
		NewWpscan(),
	} {
		r.Register(a)
	}
}
