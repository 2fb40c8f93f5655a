package dispatch

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tracelab/hemiscan/pkg/viz"
)

// Row records the outcome of one viewpoint approach.
type Row struct {
	Index       int
	Pose        viz.Pose
	Reached     bool
	Attempts    int
	Error       string
	DeltaDMM    float64
	DeltaPhiDeg float64
}

// Report accumulates per-viewpoint rows over a run.
type Report struct {
	Rows []Row
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// Add appends a row.
func (r *Report) Add(row Row) {
	r.Rows = append(r.Rows, row)
}

// Reached returns the number of successfully reached viewpoints.
func (r *Report) Reached() int {
	n := 0
	for _, row := range r.Rows {
		if row.Reached {
			n++
		}
	}
	return n
}

var csvHeader = []string{
	"idx", "x_mm", "y_mm", "z_mm", "ox", "oy", "oz", "theta",
	"reached", "attempts", "delta_d_mm", "delta_phi_deg", "error",
}

// WriteCSV writes the report to path, one row per viewpoint.
func (r *Report) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := []string{
			strconv.Itoa(row.Index),
			ftoa(row.Pose.X), ftoa(row.Pose.Y), ftoa(row.Pose.Z),
			ftoa(row.Pose.OX), ftoa(row.Pose.OY), ftoa(row.Pose.OZ), ftoa(row.Pose.Theta),
			strconv.FormatBool(row.Reached),
			strconv.Itoa(row.Attempts),
			ftoa(row.DeltaDMM), ftoa(row.DeltaPhiDeg),
			row.Error,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

var (
	reportHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	reportCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	reportOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	reportFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	reportDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Render returns the report as a styled terminal table.
func (r *Report) Render() string {
	rows := make([][]string, 0, len(r.Rows))
	reached := make([]bool, 0, len(r.Rows))
	for _, row := range r.Rows {
		status := "ok"
		if !row.Reached {
			status = "failed"
		}
		rows = append(rows, []string{
			strconv.Itoa(row.Index),
			fmt.Sprintf("(%.1f, %.1f, %.1f)", row.Pose.X, row.Pose.Y, row.Pose.Z),
			status,
			strconv.Itoa(row.Attempts),
			fmt.Sprintf("%.2f", row.DeltaDMM),
			fmt.Sprintf("%.2f", row.DeltaPhiDeg),
			row.Error,
		})
		reached = append(reached, row.Reached)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(reportDimStyle).
		Headers("Idx", "Position (mm)", "Status", "Attempts", "Δd (mm)", "Δφ (deg)", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return reportHeaderStyle
			}
			if col == 2 && row >= 0 && row < len(reached) {
				if reached[row] {
					return reportOKStyle
				}
				return reportFailStyle
			}
			return reportCellStyle
		})

	summary := fmt.Sprintf("%d/%d viewpoints reached", r.Reached(), len(r.Rows))
	return t.Render() + "\n" + reportDimStyle.Render(summary) + "\n"
}
