package navfusion

import (
	"bufio"
	"fmt"
	"math"
	"os"
)

// KML header/footer template text, grounded on convkml.go's package-level
// const-block idiom, but with the streaming per-epoch shape of
// io_out.cpp's Output_c (one header written at start, one coordinate
// line per epoch, one footer written on clean termination) rather than
// the buffer-then-write-once SaveKml shape.
const (
	kmlHeader1 = `<?xml version="1.0" encoding="UTF-8"?><kml><Document>`
	kmlHeader2 = `    <description>ROUTE</description>
    <Style id="yellowLineGreenPoly">
      <LineStyle>`
	kmlHeader3 = `        <width>3</width>
      </LineStyle>
    </Style>
    <Placemark>
      <name>Absolute Extruded</name>
      <description>LLH</description>
      <styleUrl>#yellowLineGreenPoly</styleUrl>
      <LineString>
        <extrude>1</extrude>
        <tessellate>1</tessellate>
        <altitudeMode>absolut</altitudeMode>
        <coordinates>`

	kmlFooter = `        </coordinates>
      </LineString>
    </Placemark>
  </Document>
</kml>
`

	kmlColorRed   = "FFFF0000"
	kmlColorBlue  = "FF0000FF"
	kmlColorGreen = "FF00FF00"
)

// KmlWriter streams one KML Document/LineString Placemark, one
// <coordinates> line per epoch, matching the output-file contract of
// the output-file contract.
type KmlWriter struct {
	f *os.File
	w *bufio.Writer
}

func NewKmlWriter(path, label, color string) (*KmlWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, WrapFault(FileOpen, "opening "+path, err)
	}
	kw := &KmlWriter{f: f, w: bufio.NewWriter(f)}
	kw.w.WriteString(kmlHeader1 + "\n   <name>" + label + "</name>\n" + kmlHeader2 +
		" \n        <color>" + color + "</color>\n" + kmlHeader3 + "\n")
	return kw, nil
}

// WriteLLH writes one coordinate line in lon,lat,height order, per
// KML's coordinate order is lon,lat, not lat,lon.
func (kw *KmlWriter) WriteLLH(llh Vec3) error {
	if math.IsNaN(llh[0]) || math.IsNaN(llh[1]) {
		return nil
	}
	_, err := fmt.Fprintf(kw.w, "        %.9f,%.9f,%.3f\n", llh[1]*radToDeg, llh[0]*radToDeg, llh[2])
	if err != nil {
		return WrapFault(FileWrite, "writing KML coordinate", err)
	}
	return nil
}

// Close writes the closing footer (the "clean termination" requirement of
// and closes the file.
func (kw *KmlWriter) Close() error {
	if _, err := kw.w.WriteString(kmlFooter); err != nil {
		kw.f.Close()
		return WrapFault(FileWrite, "writing KML footer", err)
	}
	if err := kw.w.Flush(); err != nil {
		kw.f.Close()
		return WrapFault(FileWrite, "flushing KML writer", err)
	}
	if err := kw.f.Close(); err != nil {
		return WrapFault(FileClose, "closing KML file", err)
	}
	return nil
}

const radToDeg = 180.0 / math.Pi
