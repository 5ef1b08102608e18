package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rawaccel/internal/accel"
	"rawaccel/internal/profile"
)

var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "List the curve families and their parameters",
	Args:  cobra.NoArgs,
	RunE:  runFamilies,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the settings the daemon is running",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default settings as a TOML profile",
	Args:  cobra.NoArgs,
	RunE:  runDefaults,
}

type familyInfo struct {
	Index  accel.Index `json:"index"`
	Name   string      `json:"name"`
	Fields []string    `json:"fields"`
}

func runFamilies(cmd *cobra.Command, args []string) error {
	var infos []familyInfo
	data := pterm.TableData{{"Index", "Name", "Parameters"}}

	for _, f := range reg.All() {
		info := familyInfo{Index: f.Index, Name: f.Name}
		var desc []string
		for _, field := range accel.Fields() {
			if !f.Active(field) {
				continue
			}
			info.Fields = append(info.Fields, field.String())
			if c, ok := f.Bound(field); ok {
				desc = append(desc, fmt.Sprintf("%s (%s)", field, boundText(c)))
			} else {
				desc = append(desc, field.String())
			}
		}
		infos = append(infos, info)
		data = append(data, []string{fmt.Sprint(f.Index), f.Name, strings.Join(desc, ", ")})
	}

	if jsonOut {
		return printJSON(infos)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func boundText(c accel.Constraint) string {
	op := ">="
	if c.MinExclusive {
		op = ">"
	}
	return op + " " + formatFloat(c.Min)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSynchronizer().ReadActive(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(s)
	}
	return renderSettings("Active settings", s)
}

func runDefaults(cmd *cobra.Command, args []string) error {
	b, err := profile.Encode(reg, accel.DefaultSettings())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
