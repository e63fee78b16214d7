package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ufosim/internal/autopilot"
	"github.com/san-kum/ufosim/internal/config"
	"github.com/san-kum/ufosim/internal/export"
	"github.com/san-kum/ufosim/internal/logging"
	"github.com/san-kum/ufosim/internal/metrics"
	"github.com/san-kum/ufosim/internal/sim"
	"github.com/san-kum/ufosim/internal/storage"
	"github.com/san-kum/ufosim/internal/ufo"
	"github.com/san-kum/ufosim/internal/viz"
)

// run length applied when neither the config nor the pilot ends a batch run
const defaultRunLimit = 600.0

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFile    string
	verbose    bool

	holdAltitude float64
	holdSpeed    float64
	holdFor      float64
	realtime     bool
	stride       int
	runName      string
	noSave       bool

	themeName  string
	presetList []string
	parallel   int

	plotFields []string
	outFile    string
	svgWidth   int
	svgHeight  int
)

var (
	colorLanded  = color.New(color.FgGreen, color.Bold)
	colorCrashed = color.New(color.FgRed, color.Bold)
	colorOpen    = color.New(color.FgYellow)
	colorLabel   = color.New(color.FgHiBlack)
	colorError   = color.New(color.FgRed)
)

func main() {
	// a .env file may carry UFOSIM_* overrides
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "ufosim",
		Short:         "ufo flight simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".ufosim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file (yaml)")
	pf.StringVar(&preset, "preset", "", "vehicle preset")
	pf.StringVar(&logLevel, "log-level", "info", "log level")
	pf.StringVar(&logFile, "log-file", "", "log file (rotated)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	runCmd := &cobra.Command{
		Use:   "run [mission.yaml]",
		Short: "fly a mission or an altitude hold and save the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runFlight,
	}
	addSimFlags(runCmd)
	runCmd.Flags().BoolVar(&realtime, "realtime", false, "pace ticks at wall-clock speed")
	runCmd.Flags().IntVar(&stride, "stride", 1, "record every n-th state")
	runCmd.Flags().StringVar(&runName, "name", "", "run name")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")

	liveCmd := &cobra.Command{
		Use:   "live [mission.yaml]",
		Short: "fly interactively in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().StringVar(&themeName, "theme", viz.ThemeNames()[0],
		"theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	compareCmd := &cobra.Command{
		Use:   "compare [mission.yaml]",
		Short: "fly the same pilot with several presets side by side",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompare,
	}
	addSimFlags(compareCmd)
	compareCmd.Flags().StringSliceVar(&presetList, "presets", nil, "presets to compare (default all)")
	compareCmd.Flags().IntVar(&parallel, "parallel", 0, "max concurrent runs (0 = all)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run-id]",
		Short: "plot a saved run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotFields, "fields", []string{"z", "v"}, "state fields to plot")

	svgCmd := &cobra.Command{
		Use:   "export-svg [run-id]",
		Short: "export a saved run as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default <run-id>.svg)")
	svgCmd.Flags().IntVar(&svgWidth, "width", 900, "image width")
	svgCmd.Flags().IntVar(&svgHeight, "height", 420, "image height")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list vehicle presets",
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		RunE:  showConfig,
	}
	addSimFlags(configCmd)
	configCmd.Flags().StringVarP(&outFile, "output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(runCmd, liveCmd, compareCmd, listCmd, plotCmd, svgCmd, presetsCmd, configCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		colorError.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("dt", config.DefaultDt, "timestep in seconds")
	f.Float64("max-time", 0, "flight time limit in seconds (0 = none)")
	f.Float64("speed-factor", config.DefaultSpeedFactor, "tick pacing multiplier (0 = unpaced)")
	f.Duration("timeout", 0, "default wait timeout for queued commands")
	f.Float64Var(&holdAltitude, "hold-altitude", 0, "fly an altitude hold instead of a mission")
	f.Float64Var(&holdSpeed, "hold-speed", 20, "cruise speed for the altitude hold")
	f.Float64Var(&holdFor, "hold-for", 60, "seconds of flight before the altitude hold lets go")
}

func newLogger(console io.Writer) (zerolog.Logger, io.Closer, error) {
	file := logFile
	if file == "" && console == nil {
		file = filepath.Join(dataDir, "ufosim.log")
	}
	return logging.New(logging.Options{
		Level:   logLevel,
		File:    file,
		Console: console,
		NoColor: color.NoColor,
	})
}

func stderrIfVerbose() io.Writer {
	if verbose {
		return os.Stderr
	}
	return nil
}

// pilotFor picks the autopilot for args: a mission file, an altitude hold
// or none. The returned name labels the run.
func pilotFor(args []string) (sim.Autopilot, string, error) {
	if len(args) == 1 {
		m, err := autopilot.LoadMission(args[0])
		if err != nil {
			return nil, "", err
		}
		return m, m.Name, nil
	}
	if holdAltitude > 0 {
		return nil, fmt.Sprintf("hold-%g", holdAltitude), nil
	}
	return nil, "", nil
}

// newPilot returns a fresh autopilot per simulation; altitude holds carry
// controller state and cannot be shared.
func newPilot(shared sim.Autopilot) sim.Autopilot {
	if shared != nil {
		return shared
	}
	if holdAltitude > 0 {
		hold := autopilot.NewAltitudeHold(holdAltitude, holdSpeed)
		hold.HoldFor = holdFor
		return hold
	}
	return nil
}

func buildSim(cfg config.Config, log zerolog.Logger, pilot sim.Autopilot) (*sim.Simulation, error) {
	opts := []sim.Option{sim.WithLogger(log)}
	if pilot != nil {
		opts = append(opts, sim.WithAutopilot(pilot))
	}
	return sim.New(cfg, opts...)
}

func runFlight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, preset)
	if err != nil {
		return err
	}
	mission, name, err := pilotFor(args)
	if err != nil {
		return err
	}
	pilot := newPilot(mission)
	if pilot == nil {
		return errors.New("nothing to fly: pass a mission file or --hold-altitude")
	}
	if runName != "" {
		name = runName
	}

	log, closer, err := newLogger(stderrIfVerbose())
	if err != nil {
		return err
	}
	defer closer.Close()

	if !realtime {
		cfg.SpeedFactor = 0
	}
	if cfg.MaxFlightTime == 0 {
		cfg.MaxFlightTime = defaultRunLimit
		log.Warn().Float64("limit", defaultRunLimit).Msg("no flight time limit set, using default")
	}

	s, err := buildSim(cfg, log, pilot)
	if err != nil {
		return err
	}
	rec := storage.NewRecorder(stride)
	scores := metrics.Default()
	tok := s.Subscribe(func(st ufo.State) {
		rec.Observe(st)
		scores.Observe(st)
	})

	fmt.Printf("flying %s (preset %s)...\n", name, orNone(preset))
	start := time.Now()
	runErr := s.Run(cmd.Context())
	s.Unsubscribe(tok)
	elapsed := time.Since(start)

	states := rec.States()
	printSummary(os.Stdout, s, scores.Values(), runErr, elapsed)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if noSave {
		return runErr
	}
	id, err := saveRun(name, cfg, s, states, rec.Stride(), scores.Values(), runErr)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", id)
	return runErr
}

func saveRun(name string, cfg config.Config, s *sim.Simulation, states []ufo.State, stride int, scores map[string]float64, runErr error) (string, error) {
	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return "", err
	}
	meta := storage.RunMetadata{
		Name:    name,
		Config:  cfg,
		Outcome: s.Outcome().String(),
		Phase:   s.Phase().String(),
		Ticks:   s.Ticks(),
		Metrics: scores,
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}
	meta.Summarize(states)

	id, err := store.Save(meta, states)
	if err != nil {
		return "", err
	}
	rec := &storage.Recording{RunID: id, Dt: cfg.Dt, Stride: stride, States: states}
	if err := store.SaveRecording(rec); err != nil {
		return id, err
	}
	return id, nil
}

func printSummary(w io.Writer, s *sim.Simulation, scores map[string]float64, runErr error, elapsed time.Duration) {
	final := s.Snapshot()
	row := func(label, format string, a ...any) {
		fmt.Fprintf(w, "  %s %s\n", colorLabel.Sprintf("%-12s", label), fmt.Sprintf(format, a...))
	}

	fmt.Fprintln(w)
	row("outcome", "%s", outcomeColor(s.Outcome()).Sprint(strings.ToUpper(s.Outcome().String())))
	row("phase", "%s", s.Phase())
	row("flight time", "%.2fs (%d ticks, %v wall)", final.FlightTime, s.Ticks(), elapsed.Round(time.Millisecond))
	row("distance", "%.1fm", final.Dist)
	row("position", "x=%.1f y=%.1f z=%.1f", final.X, final.Y, final.Z)
	row("velocity", "v=%.2f d=%.0f° i=%.0f°", final.V, final.D, final.I)
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		row(strings.ReplaceAll(name, "_", " "), "%.3f", scores[name])
	}
	if s.Stagnant() {
		row("note", "%s", colorOpen.Sprint("state stagnated"))
	}
	if runErr != nil {
		row("error", "%s", colorError.Sprint(runErr))
	}
	fmt.Fprintln(w)
}

func outcomeColor(o ufo.Outcome) *color.Color {
	switch o {
	case ufo.Landed:
		return colorLanded
	case ufo.Crashed:
		return colorCrashed
	default:
		return colorOpen
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, preset)
	if err != nil {
		return err
	}
	mission, _, err := pilotFor(args)
	if err != nil {
		return err
	}

	// the cockpit owns the terminal, so logs only go to a file
	log, closer, err := newLogger(nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := buildSim(cfg, log, newPilot(mission))
	if err != nil {
		return err
	}
	return viz.Run(cmd.Context(), s, viz.ThemeByName(themeName), tea.WithAltScreen())
}

func runCompare(cmd *cobra.Command, args []string) error {
	mission, name, err := pilotFor(args)
	if err != nil {
		return err
	}
	if mission == nil && holdAltitude <= 0 {
		return errors.New("nothing to fly: pass a mission file or --hold-altitude")
	}

	names := presetList
	if len(names) == 0 {
		names = config.ListPresets()
	}

	log, closer, err := newLogger(stderrIfVerbose())
	if err != nil {
		return err
	}
	defer closer.Close()

	sims := make([]*sim.Simulation, len(names))
	for i, p := range names {
		cfg, err := loadConfig(cmd, p)
		if err != nil {
			return err
		}
		cfg.SpeedFactor = 0
		if cfg.MaxFlightTime == 0 {
			cfg.MaxFlightTime = defaultRunLimit
		}
		s, err := buildSim(cfg, log.With().Str("preset", p).Logger(), newPilot(mission))
		if err != nil {
			return fmt.Errorf("preset %s: %w", p, err)
		}
		sims[i] = s
	}

	fmt.Printf("flying %s with %d presets...\n\n", name, len(names))
	results, err := sim.NewFleet(parallel, sims...).Run(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tOUTCOME\tPHASE\tTIME\tDIST\tTICKS\tERROR")
	for i, r := range results {
		errText := "-"
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.1fm\t%d\t%s\n",
			names[i], r.Outcome, r.Phase, r.Final.FlightTime, r.Final.Dist, r.Ticks, errText)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs saved")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWHEN\tOUTCOME\tPHASE\tTIME\tDIST\tMAX ALT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2fs\t%.1fm\t%.1fm\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04"),
			run.Outcome,
			run.Phase,
			run.FlightTime,
			run.Distance,
			run.MaxAltitude,
		)
	}
	return w.Flush()
}

// loadFlight prefers the compressed recording and falls back to the csv.
func loadFlight(store *storage.Store, id string) ([]ufo.State, error) {
	rec, err := store.LoadRecording(id)
	if err == nil {
		return rec.States, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return store.LoadStates(id)
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	states, err := loadFlight(store, meta.ID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("run %s has no states", meta.ID)
	}

	fmt.Printf("%s  %s  %s\n\n", meta.Name, outcomeColor(parseOutcome(meta.Outcome)).Sprint(meta.Outcome), meta.Timestamp.Format(time.RFC822))
	for _, field := range plotFields {
		idx := fieldIndex(field)
		if idx < 0 {
			return fmt.Errorf("unknown field %q (have %s)", field, strings.Join(ufo.FieldNames, ", "))
		}
		data := make([]float64, len(states))
		for i, st := range states {
			data[i] = st.Fields()[idx]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s over %.1fs", field, states[len(states)-1].FlightTime)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func fieldIndex(name string) int {
	for i, f := range ufo.FieldNames {
		if f == name {
			return i
		}
	}
	return -1
}

func parseOutcome(s string) ufo.Outcome {
	for _, o := range []ufo.Outcome{ufo.Landed, ufo.Crashed} {
		if o.String() == s {
			return o
		}
	}
	return ufo.Continuing
}

func exportSVG(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	states, err := loadFlight(store, meta.ID)
	if err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = meta.ID + ".svg"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteSVG(f, states, svgWidth, svgHeight); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMAX V\tTHRUST\tTURN\tPITCH\tDRAG\tV TOL")
	for _, name := range config.ListPresets() {
		c, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.0f\t%.1f\t%.0f°/s\t%.0f°/s\t%.3f\t%.2f\n",
			name, c.MaxVelocity, c.Thrust, c.TurnRate, c.PitchRate, c.Drag, c.VelocityTolerance)
	}
	return w.Flush()
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, preset)
	if err != nil {
		return err
	}
	if outFile != "" {
		if err := config.Save(outFile, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
		return nil
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
