package navfusion

import (
	"bufio"
	"fmt"
	"os"
)

// csvHeader is the fixed column order of the combined solution table:
// GPS/INS/FUSION latitude and longitude in degrees, INS/FUSION speed as
// the 2-norm of the horizontal+vertical velocity, and roll/pitch/yaw in
// degrees. Matches the field order original_source/io_out.cpp's
// csvSetData writes.
const csvHeader = "GPS_LAT,GPS_LON,INS_LAT,INS_LON,INS_V,INS_ROLL,INS_PITCH,INS_YAW,FUS_LAT,FUS_LON,FUS_V,FUS_ROLL,FUS_PITCH,FUS_YAW"

// CsvWriter streams one header row followed by one content row per
// epoch, mirroring the incremental write-as-you-go shape used for the
// KML writer rather than buffering the whole run.
type CsvWriter struct {
	f *os.File
	w *bufio.Writer
}

func NewCsvWriter(path string) (*CsvWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, WrapFault(FileOpen, "opening "+path, err)
	}
	cw := &CsvWriter{f: f, w: bufio.NewWriter(f)}
	if _, err := cw.w.WriteString(csvHeader + "\n"); err != nil {
		f.Close()
		return nil, WrapFault(FileWrite, "writing csv header", err)
	}
	return cw, nil
}

// WriteEpoch writes one content row for the given epoch result.
func (cw *CsvWriter) WriteEpoch(r EpochResult) error {
	insV := vecNorm(r.Ins.V)
	fusV := vecNorm(r.Fusion.V)

	_, err := fmt.Fprintf(cw.w, "%.9f,%.9f,%.9f,%.9f,%.4f,%.6f,%.6f,%.6f,%.9f,%.9f,%.4f,%.6f,%.6f,%.6f\n",
		r.Gps.LLH[0]*radToDeg, r.Gps.LLH[1]*radToDeg,
		r.Ins.LLH[0]*radToDeg, r.Ins.LLH[1]*radToDeg, insV,
		r.Ins.RPY[0]*radToDeg, r.Ins.RPY[1]*radToDeg, r.Ins.RPY[2]*radToDeg,
		r.Fusion.LLH[0]*radToDeg, r.Fusion.LLH[1]*radToDeg, fusV,
		r.Fusion.RPY[0]*radToDeg, r.Fusion.RPY[1]*radToDeg, r.Fusion.RPY[2]*radToDeg,
	)
	if err != nil {
		return WrapFault(FileWrite, "writing csv row", err)
	}
	return nil
}

func (cw *CsvWriter) Close() error {
	if err := cw.w.Flush(); err != nil {
		cw.f.Close()
		return WrapFault(FileWrite, "flushing csv writer", err)
	}
	if err := cw.f.Close(); err != nil {
		return WrapFault(FileClose, "closing csv file", err)
	}
	return nil
}
