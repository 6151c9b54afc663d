package navfusion

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nvpadron/navfusion/internal/navmetrics"
)

// Run opens the configured input CSV, drives the engine one row at a
// time, and streams results into the output CSV and the three KML
// tracks. All four output file handles are closed on every exit path,
// including a mid-run error, so a partially written KML always carries
// its closing footer.
func Run(cfg *Config, log *logrus.Logger, metrics *navmetrics.RunMetrics) error {
	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return WrapFault(FileOpen, "opening input CSV", err)
	}
	defer in.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return WrapFault(FileRead, "reading CSV header", scanner.Err())
		}
		return NewFault(EndOfFile, "input CSV has no rows")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return WrapFault(FileOpen, "creating output directory", err)
	}

	csvOut, err := NewCsvWriter(cfg.OutputDir + "/output.csv")
	if err != nil {
		return err
	}
	defer csvOut.Close()

	gpsKml, err := NewKmlWriter(cfg.OutputDir+"/kml_gps.kml", "GPS", kmlColorRed)
	if err != nil {
		return err
	}
	defer gpsKml.Close()

	insKml, err := NewKmlWriter(cfg.OutputDir+"/kml_ins.kml", "INS", kmlColorBlue)
	if err != nil {
		return err
	}
	defer insKml.Close()

	fusKml, err := NewKmlWriter(cfg.OutputDir+"/kml_fusion.kml", "FUSION", kmlColorGreen)
	if err != nil {
		return err
	}
	defer fusKml.Close()

	engine, err := NewEngine(cfg, log, metrics)
	if err != nil {
		return err
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, err := parseCsvRow(line)
		if err != nil {
			return err
		}

		result, err := engine.ProcessEpoch(row)
		if err != nil {
			return err
		}

		if err := csvOut.WriteEpoch(result); err != nil {
			return err
		}
		if err := gpsKml.WriteLLH(result.Gps.LLH); err != nil {
			return err
		}
		if err := insKml.WriteLLH(result.Ins.LLH); err != nil {
			return err
		}
		if err := fusKml.WriteLLH(result.Fusion.LLH); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapFault(FileRead, "reading input CSV", err)
	}

	if log != nil {
		log.WithFields(logrus.Fields{"epochs": engine.Epoch}).Info("run complete")
	}
	return nil
}

func parseCsvRow(line string) ([]float64, error) {
	fields := strings.Split(line, ",")
	row := make([]float64, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			row[i] = 0
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, WrapFault(FileRead, "parsing CSV field "+strconv.Itoa(i), err)
		}
		row[i] = v
	}
	return row, nil
}
