package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// script is a YAML command script:
//
//	workbook: budget.json   # optional, relative to the script
//	commands:
//	  - type: SET_VALUE
//	    sheetId: Sheet1
//	    xc: A1
//	    text: "=SUM(B1:B3)"
//	print: [A1, "Notes!B2"]
type script struct {
	Workbook string           `yaml:"workbook"`
	Commands []map[string]any `yaml:"commands"`
	Print    []string         `yaml:"print"`
}

func readScript(path string) (*script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.Workbook != "" && !filepath.IsAbs(s.Workbook) {
		s.Workbook = filepath.Join(filepath.Dir(path), s.Workbook)
	}
	return &s, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run a YAML command script against a workbook",
		Long: `Decodes every command of the script, dispatches them in order and prints
one line per command. addresses listed under print are shown at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := readScript(args[0])
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("workbook"); path != "" {
				s.Workbook = path
			}
			strict, _ := cmd.Flags().GetBool("strict")
			out, _ := cmd.Flags().GetString("out")

			// decode everything first, a bad script runs nothing
			cmds := make([]spreadsheet.Command, 0, len(s.Commands))
			for i, raw := range s.Commands {
				c, err := spreadsheet.DecodeCommand(raw)
				if err != nil {
					return fmt.Errorf("command %d: %w", i+1, err)
				}
				cmds = append(cmds, c)
			}

			var data *spreadsheet.WorkbookData
			if s.Workbook != "" {
				if data, err = readWorkbookFile(s.Workbook); err != nil {
					return err
				}
			}
			sheet, err := spreadsheet.OpenSpreadsheet(data, st.modelOptions()...)
			if err != nil {
				return err
			}
			model := sheet.Model()

			w := cmd.OutOrStdout()
			cancelled := 0
			for i, c := range cmds {
				result := model.Dispatch(c)
				if result.IsSuccess() {
					fmt.Fprintf(w, "%d %s ok\n", i+1, c.Type())
					continue
				}
				cancelled++
				fmt.Fprintf(w, "%d %s cancelled: %s\n", i+1, c.Type(), result.Message())
				st.logger.Debug("command cancelled", "type", c.Type(), "reason", result.Reason)
			}
			model.RunPending()

			printed := sheet.Chain(func(line string) { fmt.Fprintln(w, line) })
			for _, address := range s.Print {
				printed.Log(address)
			}
			err = printed.OnError(func(err error) error {
				return fmt.Errorf("print: %w", err)
			}).Error()
			if err != nil {
				return err
			}

			if out != "" {
				if err := writeWorkbookFile(out, model); err != nil {
					return err
				}
				st.logger.Info("workbook written", "path", out)
			}
			if strict && cancelled > 0 {
				return fmt.Errorf("%d of %d commands cancelled", cancelled, len(cmds))
			}
			return nil
		},
	}
	cmd.Flags().String("workbook", "", "workbook to start from (.json or .xlsx), overrides the script")
	cmd.Flags().StringP("out", "o", "", "write the resulting workbook (.json or .xlsx)")
	cmd.Flags().Bool("strict", false, "fail when a command is cancelled")
	return cmd
}
