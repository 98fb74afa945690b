// Command chart renders an HTML line chart of recorded frame telemetry
// (dropped-frame counts and fast-analysis latency) from a filesink debug log,
// using go-echarts the same way internal/lidar/monitor's debug dashboard
// endpoints do (charts.NewLine + opts.Initialization + Render to a writer).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/klauspost/compress/gzip"
)

var (
	inPath  = flag.String("in", "", "gzip-compressed JSON telemetry log written by the file debug sink")
	outPath = flag.String("out", "telemetry.html", "output HTML file")
)

// record mirrors filesink.Record's envelope plus the JSON shape of
// internal/sensor's frameTelemetry payload. The two packages are decoupled
// by the JSON wire contract only, matching how the metadata sink is
// intentionally opaque to its payload (spec §6).
type record struct {
	Timestamp time.Time `json:"ts"`
	Payload   struct {
		SensorID      int   `json:"sensor_id"`
		FrameID       int   `json:"frame_id"`
		DroppedFrames int64 `json:"dropped_frames"`
		DevicesFound  int   `json:"devices_found"`
		FastLatencyNS int64 `json:"fast_latency_ns"`
	} `json:"payload"`
}

func main() {
	flag.Parse()
	if *inPath == "" {
		log.Fatal("-in is required")
	}

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("open %s: %v", *inPath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		log.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var (
		times    []string
		dropped  []opts.LineData
		fastLat  []opts.LineData
		nDevices []opts.LineData
	)

	dec := json.NewDecoder(bufio.NewReader(gz))
	for dec.More() {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			log.Fatalf("decode record: %v", err)
		}
		times = append(times, rec.Timestamp.Format("15:04:05.000"))
		dropped = append(dropped, opts.LineData{Value: rec.Payload.DroppedFrames})
		fastLat = append(fastLat, opts.LineData{Value: float64(rec.Payload.FastLatencyNS) / 1e6})
		nDevices = append(nDevices, opts.LineData{Value: rec.Payload.DevicesFound})
	}
	log.Printf("loaded %d telemetry records", len(times))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracking Telemetry", Theme: "dark", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracking Telemetry", Subtitle: *inPath}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time"}),
	)
	line.SetXAxis(times).
		AddSeries("dropped frames (cumulative)", dropped).
		AddSeries("fast-analysis latency (ms)", fastLat).
		AddSeries("devices found", nDevices)

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer out.Close()

	if err := line.Render(out); err != nil {
		log.Fatalf("render chart: %v", err)
	}
	log.Printf("wrote %s", *outPath)
}
