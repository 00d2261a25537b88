// Package report renders the consolidated audit report.
package report

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"panaudit/internal/inventory"
)

// Render writes the fact set as a bordered grid. Column order follows
// the Fact field order. An empty fact set renders an empty table.
func Render(w io.Writer, facts []inventory.Fact) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"hostname", "ipaddress", "serial", "model",
		"sw_version", "app_version", "device_cert_status", "redistr_server",
	})
	table.SetAutoWrapText(false)

	for _, f := range facts {
		table.Append([]string{
			f.Hostname, f.IPAddress, f.Serial, f.Model,
			f.SWVersion, f.AppVersion, f.CertStatus, strconv.FormatBool(f.RedistServer),
		})
	}

	table.Render()
}
