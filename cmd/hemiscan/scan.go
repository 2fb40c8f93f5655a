package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"go.viam.com/rdk/logging"

	"github.com/tracelab/hemiscan/pkg/config"
	"github.com/tracelab/hemiscan/pkg/dispatch"
	"github.com/tracelab/hemiscan/pkg/motion"
	"github.com/tracelab/hemiscan/pkg/viewpoint"
	"github.com/tracelab/hemiscan/pkg/viz"
)

type ScanCommand struct {
	Config   string `long:"config" default:"hemiscan.json" description:"Parameter file"`
	Headless bool   `long:"headless" description:"Stream log lines instead of the live view"`
	Yes      bool   `long:"yes" short:"y" description:"Skip the confirmation prompt"`
	Report   string `long:"report" description:"Override the report CSV path"`
}

const (
	headerHeight = 2 // title + blank line
	statusHeight = 2 // progress row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (c *ScanCommand) Execute(args []string) error {
	cfg, err := config.LoadFrom(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No parameter file at %s. Run 'hemiscan setup' first.\n", c.Config)
		os.Exit(1)
	}
	if c.Report != "" {
		cfg.Run.ReportPath = c.Report
	}

	vps, err := viewpoint.Generate(viewpointParams(cfg))
	if err != nil {
		return fmt.Errorf("generate viewpoints: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logging.NewLogger("hemiscan")

	feed, err := viz.Open(cfg.Viz.Sink, cfg.Viz.TargetTopic, cfg.Viz.SetTopic)
	if err != nil {
		return fmt.Errorf("open viz sink: %w", err)
	}
	defer feed.Close()

	mover, err := motion.Connect(ctx, cfg.Robot, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer mover.Close(context.Background())

	if err := mover.SetGuardBox(cfg.Hemisphere.Center.Vector(), cfg.Run.GuardBox.Vector()); err != nil {
		return fmt.Errorf("guard box: %w", err)
	}

	if !c.Yes && !confirmScan(len(vps), cfg) {
		fmt.Println("Scan cancelled.")
		return nil
	}

	d := dispatch.New(mover, feed, logger, dispatch.Config{
		OnFailure:               cfg.Run.OnFailure,
		Retries:                 cfg.Run.Retries,
		SettleDelay:             time.Duration(cfg.Run.SettleMS) * time.Millisecond,
		PositionToleranceMM:     cfg.Run.PositionToleranceMM,
		OrientationToleranceDeg: cfg.Run.OrientationToleranceDeg,
	})

	var report *dispatch.Report
	var runErr error
	if c.Headless {
		report, runErr = runHeadless(ctx, d, vps)
	} else {
		report, runErr = runWithView(ctx, cancel, d, vps, cfg.Run.PositionToleranceMM)
	}

	if report != nil && len(report.Rows) > 0 {
		fmt.Println()
		fmt.Print(report.Render())
		if err := report.WriteCSV(cfg.Run.ReportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		} else {
			fmt.Printf("Report written to %s\n", cfg.Run.ReportPath)
		}
	}

	if runErr != nil {
		return fmt.Errorf("scan: %w", runErr)
	}
	if report.Reached() == 0 {
		return fmt.Errorf("no viewpoints reached")
	}
	return nil
}

func confirmScan(count int, cfg *config.Config) bool {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Drive the arm through %d viewpoints on %s?", count, cfg.Robot.Address)).
				Description("The arm will move. Keep the workspace clear.").
				Affirmative("Start scan").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return confirmed
}

func runHeadless(ctx context.Context, d *dispatch.Dispatcher, vps []viewpoint.Viewpoint) (*dispatch.Report, error) {
	go func() {
		for msg := range d.Logs() {
			fmt.Println(msg)
		}
	}()
	return d.Run(ctx, vps)
}

// runResult carries the dispatcher's outcome from its goroutine to the TUI.
type runResult struct {
	report *dispatch.Report
	err    error
}

func runWithView(
	ctx context.Context,
	cancel context.CancelFunc,
	d *dispatch.Dispatcher,
	vps []viewpoint.Viewpoint,
	tolMM float64,
) (*dispatch.Report, error) {
	resultCh := make(chan runResult, 1)
	go func() {
		report, err := d.Run(ctx, vps)
		resultCh <- runResult{report: report, err: err}
	}()

	p := tea.NewProgram(initialScanModel(d, len(vps), tolMM, resultCh, cancel), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	m := finalModel.(scanModel)
	if m.result != nil {
		return m.result.report, m.result.err
	}
	// User quit the view; the cancelled run still delivers its result.
	res := <-resultCh
	return res.report, res.err
}

// Messages from the dispatcher
type stateMsg dispatch.State
type logMsg string
type doneMsg runResult

func waitForState(d *dispatch.Dispatcher) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-d.States())
	}
}

func waitForLog(d *dispatch.Dispatcher) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-d.Logs())
	}
}

func waitForDone(ch <-chan runResult) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(<-ch)
	}
}

type scanModel struct {
	disp     *dispatch.Dispatcher
	chart    *streamlinechart.Model
	total    int
	state    dispatch.State
	width    int
	height   int
	logs     []string
	quitting bool
	result   *runResult
	resultCh <-chan runResult
	cancel   context.CancelFunc
}

func initialScanModel(
	d *dispatch.Dispatcher,
	total int,
	tolMM float64,
	resultCh <-chan runResult,
	cancel context.CancelFunc,
) scanModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, 4*tolMM),
	)
	chart.SetDataSetStyles("delta_d",
		runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color("51")))

	return scanModel{
		disp:     d,
		chart:    &chart,
		total:    total,
		resultCh: resultCh,
		cancel:   cancel,
	}
}

func (m *scanModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *scanModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - statusHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *scanModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func (m scanModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.disp),
		waitForLog(m.disp),
		waitForDone(m.resultCh),
	)
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case stateMsg:
		m.state = dispatch.State(msg)
		if m.state.DeltaDMM >= 0 {
			m.chart.PushDataSet("delta_d", m.state.DeltaDMM)
			m.chart.DrawAll()
		}
		return m, waitForState(m.disp)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.disp)

	case doneMsg:
		res := runResult(msg)
		m.result = &res
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m scanModel) View() string {
	if m.quitting {
		return "Scan finished.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Hemiscan"))
	sb.WriteString(fmt.Sprintf(" - %d viewpoints", m.total))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Positional error chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Progress row
	sb.WriteString(fmt.Sprintf("viewpoint %d/%d  %s  %s",
		m.state.Index+1, m.total,
		okStyle.Render(fmt.Sprintf("%d reached", m.state.Reached)),
		failStyle.Render(fmt.Sprintf("%d failed", m.state.Failed)),
	))
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("11"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to cancel the run")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}
