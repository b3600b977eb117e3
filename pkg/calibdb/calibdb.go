// Package calibdb reads the calibrations valid for a run from the
// calibration database.
package calibdb

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/daq"
)

const calibrationQuery = "SELECT ValueName, FromUnits, ToUnits, Function, XOffset, Degree, Coefficient " +
	"FROM Calibrations WHERE MinRun <= ? AND MaxRun >= ? ORDER BY ValueName, Degree"

func Connect(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	return sqlx.Connect("mysql", dbURI)
}

// CoefficientRow is one coefficient of one calibration.
type CoefficientRow struct {
	ValueName   string  `db:"ValueName"`
	FromUnits   string  `db:"FromUnits"`
	ToUnits     string  `db:"ToUnits"`
	Function    string  `db:"Function"`
	XOffset     float64 `db:"XOffset"`
	Degree      int     `db:"Degree"`
	Coefficient float64 `db:"Coefficient"`
}

// Loader builds calibrations from database rows.
type Loader struct {
	Functions *calibration.Registry
	Logger    daq.Logger
	Verbosity int
}

// LoadCalibrations returns the calibrations valid for runNumber keyed by the
// event value they apply to.
func (l Loader) LoadCalibrations(db *sqlx.DB, runNumber int) (map[string]calibration.Calibration, error) {
	log := daq.OrNop(l.Logger)
	reg := l.Functions
	if reg == nil {
		reg = calibration.DefaultRegistry()
	}
	if l.Verbosity > 0 {
		log.Info(fmt.Sprintf("Reading calibrations for run %d from database", runNumber), "database")
	}
	if l.Verbosity > 2 {
		log.Info(fmt.Sprintf("Query: %s", calibrationQuery), "database")
	}

	rows, err := db.Queryx(calibrationQuery, runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	cals := make(map[string]calibration.Calibration)
	for rows.Next() {
		row := CoefficientRow{}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		cal, ok := cals[row.ValueName]
		if !ok {
			fn, err := reg.Create(row.Function)
			if err != nil {
				return nil, fmt.Errorf("calibration of %q: %w", row.ValueName, err)
			}
			fn.SetXOffset(row.XOffset)
			cal = calibration.New(row.FromUnits, row.ToUnits, fn)
		} else if cal.Function.Type() != row.Function {
			return nil, fmt.Errorf("calibration of %q mixes %s and %s coefficients",
				row.ValueName, cal.Function.Type(), row.Function)
		}
		cal.Function.SetCoeff(row.Degree, row.Coefficient)
		cals[row.ValueName] = cal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	if l.Verbosity > 0 {
		log.Info(fmt.Sprintf("%d calibrations read from DB", len(cals)), "database")
	}
	return cals, nil
}
