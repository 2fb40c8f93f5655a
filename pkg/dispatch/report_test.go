package dispatch

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/tracelab/hemiscan/pkg/viz"
)

func sampleReport() *Report {
	r := NewReport()
	r.Add(Row{
		Index:       0,
		Pose:        viz.Pose{X: 450, Y: 0, Z: 420, OZ: -1},
		Reached:     true,
		Attempts:    1,
		DeltaDMM:    1.2,
		DeltaPhiDeg: 0.4,
	})
	r.Add(Row{
		Index:       1,
		Pose:        viz.Pose{X: 450, Y: 120, Z: 390, OY: -0.5, OZ: -0.8},
		Reached:     false,
		Attempts:    2,
		Error:       "planner rejected pose",
		DeltaDMM:    -1,
		DeltaPhiDeg: -1,
	})
	return r
}

func TestReport_Reached(t *testing.T) {
	r := sampleReport()
	test.That(t, r.Reached(), test.ShouldEqual, 1)
	test.That(t, NewReport().Reached(), test.ShouldEqual, 0)
}

func TestReport_WriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	r := sampleReport()
	test.That(t, r.WriteCSV(path), test.ShouldBeNil)

	f, err := os.Open(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(records), test.ShouldEqual, 3) // header + 2 rows
	test.That(t, records[0], test.ShouldResemble, csvHeader)

	test.That(t, records[1][0], test.ShouldEqual, "0")
	test.That(t, records[1][8], test.ShouldEqual, "true")
	test.That(t, records[2][8], test.ShouldEqual, "false")
	test.That(t, records[2][9], test.ShouldEqual, "2")
	test.That(t, records[2][12], test.ShouldEqual, "planner rejected pose")
}

func TestReport_Render(t *testing.T) {
	out := sampleReport().Render()
	test.That(t, strings.Contains(out, "ok"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, "failed"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, "1/2 viewpoints reached"), test.ShouldBeTrue)
}
