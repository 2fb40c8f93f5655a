package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tracelab/hemiscan/pkg/config"
	"github.com/tracelab/hemiscan/pkg/viewpoint"
	"github.com/tracelab/hemiscan/pkg/viz"
)

type PlanCommand struct {
	Config  string `long:"config" default:"hemiscan.json" description:"Parameter file"`
	Out     string `long:"out" description:"Write the viewpoint set to a JSON file"`
	CSV     string `long:"csv" description:"Write the viewpoint set to a CSV file"`
	Publish bool   `long:"publish" description:"Publish the set to the configured viz sink"`
}

// viewpointParams maps the parameter file onto the generator input.
func viewpointParams(cfg *config.Config) viewpoint.Params {
	return viewpoint.Params{
		RadiusMM:     cfg.Hemisphere.RadiusMM,
		Center:       cfg.Hemisphere.Center.Vector(),
		Level:        cfg.Hemisphere.Level,
		Axis:         cfg.Hemisphere.Axis.Vector(),
		MinElevation: cfg.Hemisphere.MinElevation,
	}
}

func (c *PlanCommand) Execute(args []string) error {
	cfg, err := config.LoadFrom(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No parameter file at %s. Run 'hemiscan setup' first.\n", c.Config)
		os.Exit(1)
	}

	vps, err := viewpoint.Generate(viewpointParams(cfg))
	if err != nil {
		return fmt.Errorf("generate viewpoints: %w", err)
	}

	fmt.Println(headerStyle.Render("Hemiscan Plan"))
	fmt.Printf("%d viewpoints at %.0fmm around (%.0f, %.0f, %.0f), level %d\n\n",
		len(vps), cfg.Hemisphere.RadiusMM,
		cfg.Hemisphere.Center.X, cfg.Hemisphere.Center.Y, cfg.Hemisphere.Center.Z,
		cfg.Hemisphere.Level)

	fmt.Println(renderPlanTable(vps))

	if c.Out != "" {
		if err := writePlanJSON(c.Out, vps); err != nil {
			return err
		}
		fmt.Printf("Viewpoint set written to %s\n", c.Out)
	}
	if c.CSV != "" {
		if err := writePlanCSV(c.CSV, vps); err != nil {
			return err
		}
		fmt.Printf("Viewpoint set written to %s\n", c.CSV)
	}
	if c.Publish {
		feed, err := viz.Open(cfg.Viz.Sink, cfg.Viz.TargetTopic, cfg.Viz.SetTopic)
		if err != nil {
			return fmt.Errorf("open viz sink: %w", err)
		}
		defer feed.Close()
		if err := feed.PublishSet(vps); err != nil {
			return fmt.Errorf("publish viewpoint set: %w", err)
		}
		fmt.Println("Viewpoint set published")
	}

	return nil
}

func renderPlanTable(vps []viewpoint.Viewpoint) string {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(vps))
	for _, vp := range vps {
		p := viz.FromPose(vp.Pose)
		rows = append(rows, []string{
			strconv.Itoa(vp.Index),
			fmt.Sprintf("(%.1f, %.1f, %.1f)", p.X, p.Y, p.Z),
			fmt.Sprintf("(%.3f, %.3f, %.3f)", p.OX, p.OY, p.OZ),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Idx", "Position (mm)", "Aim").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	return t.Render()
}

func writePlanJSON(path string, vps []viewpoint.Viewpoint) error {
	poses := make([]viz.Pose, len(vps))
	for i, vp := range vps {
		poses[i] = viz.FromPose(vp.Pose)
	}
	data, err := json.MarshalIndent(poses, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writePlanCSV(path string, vps []viewpoint.Viewpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"idx", "x_mm", "y_mm", "z_mm", "ox", "oy", "oz", "theta"}); err != nil {
		return err
	}
	for _, vp := range vps {
		p := viz.FromPose(vp.Pose)
		rec := []string{
			strconv.Itoa(vp.Index),
			strconv.FormatFloat(p.X, 'f', 4, 64),
			strconv.FormatFloat(p.Y, 'f', 4, 64),
			strconv.FormatFloat(p.Z, 'f', 4, 64),
			strconv.FormatFloat(p.OX, 'f', 6, 64),
			strconv.FormatFloat(p.OY, 'f', 6, 64),
			strconv.FormatFloat(p.OZ, 'f', 6, 64),
			strconv.FormatFloat(p.Theta, 'f', 6, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
