package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/kundi/core/academia"
	"github.com/trezcool/kundi/core/team"
)

func (cli *commandLine) importTeams(scope academia.Scope, path string, opts team.ImportOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening CSV file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows; row shape is validated downstream
	var count int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading CSV")
		}

		row := team.Row{Members: rec}
		if opts.HasTeamName && len(rec) > 0 {
			row = team.Row{TeamName: rec[0], Members: rec[1:]}
		}
		if err = cli.teamSvc.ImportTeam(scope, row, opts); err != nil {
			return err
		}
		count++
	}

	logger.Printf("imported %d team row(s)", count)
	return nil
}
