package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/tracelab/hemiscan/pkg/config"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Config string `long:"config" default:"hemiscan.json" description:"Where to write the parameter file"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Hemiscan Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := config.Default()

	radius := fmt.Sprintf("%g", cfg.Hemisphere.RadiusMM)
	cx, cy, cz := "0", "0", "0"
	level := strconv.Itoa(cfg.Hemisphere.Level)
	address := cfg.Robot.Address
	apiKeyID := cfg.Robot.APIKeyID
	apiKey := cfg.Robot.APIKey
	armName := cfg.Robot.Arm
	policy := string(cfg.Run.OnFailure)
	retries := strconv.Itoa(cfg.Run.Retries)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hemisphere radius (mm)").
				Description("Distance from the focal point to every camera viewpoint").
				Value(&radius).
				Validate(positiveFloat),
			huh.NewInput().Title("Center X (mm)").Value(&cx).Validate(anyFloat),
			huh.NewInput().Title("Center Y (mm)").Value(&cy).Validate(anyFloat),
			huh.NewInput().Title("Center Z (mm)").Value(&cz).Validate(anyFloat),
			huh.NewSelect[string]().
				Title("Subdivision level").
				Description("Each level roughly quadruples the viewpoint count").
				Options(
					huh.NewOption("0 (coarsest, 12 sphere samples)", "0"),
					huh.NewOption("1 (42 sphere samples)", "1"),
					huh.NewOption("2 (162 sphere samples)", "2"),
					huh.NewOption("3 (642 sphere samples)", "3"),
				).
				Value(&level),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Machine address").
				Description("host:port of the machine running the motion service").
				Value(&address),
			huh.NewInput().Title("API key ID (empty for local)").Value(&apiKeyID),
			huh.NewInput().Title("API key").EchoMode(huh.EchoModePassword).Value(&apiKey),
			huh.NewInput().Title("Arm name").Value(&armName),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("On a failed viewpoint").
				Options(
					huh.NewOption("Skip it and continue", string(config.FailureSkip)),
					huh.NewOption("Abort the run", string(config.FailureAbort)),
				).
				Value(&policy),
			huh.NewInput().
				Title("Retries per viewpoint").
				Value(&retries).
				Validate(nonNegativeInt),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg.Hemisphere.RadiusMM, _ = strconv.ParseFloat(radius, 64)
	x, _ := strconv.ParseFloat(cx, 64)
	y, _ := strconv.ParseFloat(cy, 64)
	z, _ := strconv.ParseFloat(cz, 64)
	cfg.Hemisphere.Center = config.XYZ{X: x, Y: y, Z: z}
	cfg.Hemisphere.Level, _ = strconv.Atoi(level)
	cfg.Robot.Address = address
	cfg.Robot.APIKeyID = apiKeyID
	cfg.Robot.APIKey = apiKey
	cfg.Robot.Arm = armName
	cfg.Run.OnFailure = config.FailurePolicy(policy)
	cfg.Run.Retries, _ = strconv.Atoi(retries)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if err := cfg.SaveTo(c.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Parameters saved to %s\n", c.Config)
	fmt.Println()
	fmt.Println("Preview the viewpoint set with: " + headerStyle.Render("hemiscan plan"))
	fmt.Println("Start a scan with: " + headerStyle.Render("hemiscan scan"))

	return nil
}

func positiveFloat(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func anyFloat(s string) error {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("not a number")
	}
	return nil
}

func nonNegativeInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer")
	}
	if v < 0 {
		return fmt.Errorf("must be >= 0")
	}
	return nil
}
