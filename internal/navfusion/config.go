package navfusion

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// progressInterval is the default epoch-count between progress reports,
// carried over from the original program's TIME_TO_DISPLAY constant
// (original_source/interface/ui/ui.h) — not itself a CLI flag, since
// the flag table is closed.
const progressInterval = 2000

// Config is the immutable-after-start run configuration built from the
// CLI, mirroring a field-by-field flag table. The custom
// flag.Value types below follow app/rnx2rtkp/rnx2rtkp.go's idiom of one
// concrete Value type per composite flag shape. The list types can record
// that they were explicitly set through an optional configured pointer;
// ParseArgs passes nil, so no flag records this.
type Config struct {
	InputPath string
	OutputDir string

	KfStdCfg string

	FsImu, FsGps float64

	GPSCols [2]int
	ACCCols [3]int
	GYRCols [3]int
	MAGCols [3]int
	RPYCols [3]int
	HDOPCol int

	HeightCol int
	HeightVal float64

	ACCRest Vec3
	GYRRest Vec3

	Plat2Body [9]float64

	BodySelector     Vec3
	AttitudeSelector Vec3

	InputAnglesInRadians bool
	HorizontalAlignment  bool
	FeedbackBias         bool
	MechanicsLocal       bool
	GravityCorrection    bool
	ProgressAngles       bool

	Tau float64

	GpsOffMin, GpsOffMax float64

	QuantFactor float64

	IdxMode bool

	LogLevel    string
	MetricsAddr string

	ProgressInterval int
}

func defaultConfig() *Config {
	return &Config{
		GPSCols: [2]int{-1, -1}, ACCCols: [3]int{-1, -1, -1}, GYRCols: [3]int{-1, -1, -1},
		MAGCols: [3]int{-1, -1, -1}, RPYCols: [3]int{-1, -1, -1}, HDOPCol: -1, HeightCol: -1,
		HeightVal:            100,
		Plat2Body:            [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		BodySelector:         Vec3{1, 0, 0},
		AttitudeSelector:     Vec3{0, 0, 1},
		InputAnglesInRadians: true,
		ProgressAngles:       true,
		Tau:                  1,
		GpsOffMin:            -1,
		GpsOffMax:            -1,
		QuantFactor:          10000,
		LogLevel:             "info",
		ProgressInterval:     progressInterval,
	}
}

// help carries the per-flag usage strings, searched by flag name the way
// rnx2rtkp.go's searchHelp does.
var help = []string{
	"I:input CSV path (required)",
	"O:output directory (required)",
	"K:15 comma-separated KF std values (required)",
	"F:fs_imu,fs_gps (Hz)",
	"A:ACC column triplet",
	"W:GYR column triplet",
	"M:MAG column triplet (optional)",
	"C:GPS lat,lon columns",
	"H:GPS height column",
	"h:fixed height value (default 100)",
	"R:Roll column (computed if absent)",
	"P:Pitch column (computed if absent)",
	"Y:Yaw column (computed if absent)",
	"a:ACC rest bias triplet (default 0,0,0)",
	"w:GYR rest bias triplet (default 0,0,0)",
	"p:9-element platform-to-body matrix, row-major (default identity)",
	"x:body axis mask 3-vector 0/1 (default 1,0,0)",
	"z:attitude mask 3-vector 0/1 (default 0,0,1)",
	"r:input angles in radians 0/1 (default 1)",
	"l:horizontal-plane alignment 0/1 (default 0)",
	"f:KF bias feedback 0/1 (default 0)",
	"m:mechanize velocity in local frame 0/1 (default 0)",
	"g:apply gravity correction 0/1 (default 0)",
	"y:progress attitude via gyro dynamics 0/1 (default 1)",
	"t:Markov correlation time tau in seconds (default 1)",
	"T:GPS-off interval min,max seconds (default -1,-1 disables)",
	"q:quantization factor Q (default 10000)",
	"idx:write <input>_INDEX.txt listing column headers and exit",
	"v:log level: debug,info,warn,error (default info)",
	"metrics-addr:optional host:port to serve Prometheus metrics on",
}

func searchHelp(key string) string {
	for _, h := range help {
		if strings.HasPrefix(h, key+":") {
			return h[len(key)+1:]
		}
	}
	return ""
}

type floatListValue struct {
	dst       []*float64
	configured *bool
}

func newFloatListValue(dst []*float64, configured *bool) *floatListValue {
	return &floatListValue{dst: dst, configured: configured}
}

func (v *floatListValue) String() string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v.dst))
	for i, d := range v.dst {
		if d != nil {
			parts[i] = strconv.FormatFloat(*d, 'g', -1, 64)
		}
	}
	return strings.Join(parts, ",")
}

func (v *floatListValue) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != len(v.dst) {
		return fmt.Errorf("expected %d comma-separated values, got %d", len(v.dst), len(parts))
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("value %q: %w", p, err)
		}
		*v.dst[i] = f
	}
	if v.configured != nil {
		*v.configured = true
	}
	return nil
}

type intListValue struct {
	dst        []*int
	configured *bool
}

func newIntListValue(dst []*int, configured *bool) *intListValue {
	return &intListValue{dst: dst, configured: configured}
}

func (v *intListValue) String() string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v.dst))
	for i, d := range v.dst {
		if d != nil {
			parts[i] = strconv.Itoa(*d)
		}
	}
	return strings.Join(parts, ",")
}

func (v *intListValue) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != len(v.dst) {
		return fmt.Errorf("expected %d comma-separated values, got %d", len(v.dst), len(parts))
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("value %q: %w", p, err)
		}
		*v.dst[i] = n
	}
	if v.configured != nil {
		*v.configured = true
	}
	return nil
}

type boolZeroOneValue struct{ dst *bool }

func newBoolZeroOneValue(dst *bool) *boolZeroOneValue { return &boolZeroOneValue{dst: dst} }

func (v *boolZeroOneValue) String() string {
	if v == nil || v.dst == nil {
		return "0"
	}
	if *v.dst {
		return "1"
	}
	return "0"
}

func (v *boolZeroOneValue) Set(s string) error {
	switch strings.TrimSpace(s) {
	case "0":
		*v.dst = false
	case "1":
		*v.dst = true
	default:
		return fmt.Errorf("expected 0 or 1, got %q", s)
	}
	return nil
}

// ParseArgs builds a Config from a command-line argument slice (excluding
// argv[0]), following the same flag.Var-per-composite-field idiom as
// app/rnx2rtkp/rnx2rtkp.go. It returns an *Fault with HelpRequested when -?
// is passed, and with IdxHandled after writing the index file for --idx.
func ParseArgs(args []string) (*Config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("navfusion", flag.ContinueOnError)

	fs.StringVar(&cfg.InputPath, "I", "", searchHelp("I"))
	fs.StringVar(&cfg.OutputDir, "O", "", searchHelp("O"))
	fs.StringVar(&cfg.KfStdCfg, "K", "", searchHelp("K"))

	fs.Var(newFloatListValue([]*float64{&cfg.FsImu, &cfg.FsGps}, nil), "F", searchHelp("F"))
	fs.Var(newIntListValue([]*int{&cfg.ACCCols[0], &cfg.ACCCols[1], &cfg.ACCCols[2]}, nil), "A", searchHelp("A"))
	fs.Var(newIntListValue([]*int{&cfg.GYRCols[0], &cfg.GYRCols[1], &cfg.GYRCols[2]}, nil), "W", searchHelp("W"))
	fs.Var(newIntListValue([]*int{&cfg.MAGCols[0], &cfg.MAGCols[1], &cfg.MAGCols[2]}, nil), "M", searchHelp("M"))
	fs.Var(newIntListValue([]*int{&cfg.GPSCols[0], &cfg.GPSCols[1]}, nil), "C", searchHelp("C"))
	fs.IntVar(&cfg.HeightCol, "H", -1, searchHelp("H"))
	fs.Float64Var(&cfg.HeightVal, "h", 100, searchHelp("h"))
	rollCol, pitchCol, yawCol := -1, -1, -1
	fs.IntVar(&rollCol, "R", -1, searchHelp("R"))
	fs.IntVar(&pitchCol, "P", -1, searchHelp("P"))
	fs.IntVar(&yawCol, "Y", -1, searchHelp("Y"))

	fs.Var(newFloatListValue([]*float64{&cfg.ACCRest[0], &cfg.ACCRest[1], &cfg.ACCRest[2]}, nil), "a", searchHelp("a"))
	fs.Var(newFloatListValue([]*float64{&cfg.GYRRest[0], &cfg.GYRRest[1], &cfg.GYRRest[2]}, nil), "w", searchHelp("w"))

	plat := make([]*float64, 9)
	for i := range cfg.Plat2Body {
		plat[i] = &cfg.Plat2Body[i]
	}
	fs.Var(newFloatListValue(plat, nil), "p", searchHelp("p"))

	fs.Var(newFloatListValue([]*float64{&cfg.BodySelector[0], &cfg.BodySelector[1], &cfg.BodySelector[2]}, nil), "x", searchHelp("x"))
	fs.Var(newFloatListValue([]*float64{&cfg.AttitudeSelector[0], &cfg.AttitudeSelector[1], &cfg.AttitudeSelector[2]}, nil), "z", searchHelp("z"))

	fs.Var(newBoolZeroOneValue(&cfg.InputAnglesInRadians), "r", searchHelp("r"))
	fs.Var(newBoolZeroOneValue(&cfg.HorizontalAlignment), "l", searchHelp("l"))
	fs.Var(newBoolZeroOneValue(&cfg.FeedbackBias), "f", searchHelp("f"))
	fs.Var(newBoolZeroOneValue(&cfg.MechanicsLocal), "m", searchHelp("m"))
	fs.Var(newBoolZeroOneValue(&cfg.GravityCorrection), "g", searchHelp("g"))
	fs.Var(newBoolZeroOneValue(&cfg.ProgressAngles), "y", searchHelp("y"))

	fs.Float64Var(&cfg.Tau, "t", 1, searchHelp("t"))
	fs.Var(newFloatListValue([]*float64{&cfg.GpsOffMin, &cfg.GpsOffMax}, nil), "T", searchHelp("T"))
	fs.Float64Var(&cfg.QuantFactor, "q", 10000, searchHelp("q"))

	fs.BoolVar(&cfg.IdxMode, "idx", false, searchHelp("idx"))
	fs.StringVar(&cfg.LogLevel, "v", "info", searchHelp("v"))
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", searchHelp("metrics-addr"))

	helpFlag := fs.Bool("?", false, searchHelp("?"))

	if err := fs.Parse(args); err != nil {
		return nil, WrapFault(Unknown, "parsing arguments", err)
	}
	if *helpFlag {
		return nil, NewFault(HelpRequested, "usage requested")
	}

	cfg.RPYCols = [3]int{rollCol, pitchCol, yawCol}

	if cfg.InputPath == "" {
		return nil, NewFault(InconsistentInputs, "-I input CSV path is required")
	}
	if cfg.IdxMode {
		if err := writeIndexFile(cfg.InputPath); err != nil {
			return nil, err
		}
		return nil, NewFault(IdxHandled, "wrote "+indexFilePath(cfg.InputPath))
	}
	if cfg.OutputDir == "" {
		return nil, NewFault(InconsistentInputs, "-O output directory is required")
	}
	if cfg.KfStdCfg == "" {
		return nil, NewFault(InconsistentInputs, "-K KF std values are required")
	}

	return cfg, nil
}

func indexFilePath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	return stem + "_INDEX.txt"
}

// writeIndexFile implements the --idx scenario: read the CSV header row
// and write one "<name>,<index>" line per field.
func writeIndexFile(inputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return WrapFault(FileOpen, "opening input CSV for --idx", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return WrapFault(FileRead, "reading CSV header for --idx", scanner.Err())
	}
	header := strings.Split(scanner.Text(), ",")

	out, err := os.Create(indexFilePath(inputPath))
	if err != nil {
		return WrapFault(FileOpen, "creating index file", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for i, name := range header {
		if _, err := fmt.Fprintf(w, "%s,%d\n", strings.TrimSpace(name), i); err != nil {
			return WrapFault(FileWrite, "writing index file", err)
		}
	}
	if err := w.Flush(); err != nil {
		return WrapFault(FileWrite, "flushing index file", err)
	}
	return nil
}
