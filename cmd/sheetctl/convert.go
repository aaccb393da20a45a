package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert a workbook between JSON and xlsx",
		Long: `Reads IN and writes OUT, the formats follow the file extensions. JSON
workbooks of older versions are upgraded on the way.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			data, err := readWorkbookFile(args[0])
			if err != nil {
				return err
			}
			model, err := spreadsheet.NewModel(data, st.modelOptions()...)
			if err != nil {
				return err
			}
			return writeWorkbookFile(args[1], model)
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Save a workbook file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			data, err := readWorkbookFile(args[0])
			if err != nil {
				return err
			}
			// load through a model so the stored snapshot is normalized
			model, err := spreadsheet.NewModel(data, st.modelOptions()...)
			if err != nil {
				return err
			}
			id, _ := cmd.Flags().GetString("id")
			if strings.TrimSpace(id) == "" {
				id = uuid.NewString()
			}

			workbooks, err := openStore(st.config.Store)
			if err != nil {
				return err
			}
			defer workbooks.Close()
			if err := workbooks.Save(cmd.Context(), id, model.Export()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().String("id", "", "workbook id, a new uuid when empty")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export ID FILE",
		Short: "Write a stored workbook to a .json or .xlsx file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			workbooks, err := openStore(st.config.Store)
			if err != nil {
				return err
			}
			defer workbooks.Close()

			data, err := workbooks.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("workbook %s: %w", args[0], err)
			}
			model, err := spreadsheet.NewModel(data, st.modelOptions()...)
			if err != nil {
				return err
			}
			return writeWorkbookFile(args[1], model)
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the command types scripts and the server accept",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range spreadsheet.CommandTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}
}
