// Command talon-logger subscribes to talond's websocket status feed
// and writes flattened telemetry points to InfluxDB. It is adapted from
// cmd/radar_logger/logger.go in the reference corpus: same
// flatten-then-write shape, pointed at the telescope status record
// instead of the rotator status.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

var (
	influxServer = flag.String("influx_server", "", "InfluxDB server URL (defaults to $INFLUX_SERVER or http://localhost:9999)")
	talondURL    = flag.String("talond_ws", "", "talond websocket status URL (defaults to $TALOND_ADDRESS or ws://localhost:8540/ws)")
)

func main() {
	flag.Parse()
	server := *influxServer
	if server == "" {
		server = envOr("INFLUX_SERVER", "http://localhost:9999")
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()

	writeAPI := client.WriteApi("w1xm", "talon.status")
	defer writeAPI.Close()

	errorsCh := writeAPI.Errors()
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()

	for {
		if err := logData(writeAPI); err != nil {
			log.Print(err)
		}
		time.Sleep(time.Second)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for i, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, i))
		}
	case nil:
		// Optional sub-record absent on this tick; nothing to record.
	default:
		fields[prefix[1:]] = status
	}
}

func logData(writeAPI api.WriteApi) error {
	url := *talondURL
	if url == "" {
		url = envOr("TALOND_ADDRESS", "ws://localhost:8540/ws")
	}
	defer writeAPI.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		fields := make(map[string]interface{})
		flattenStatus(fields, status, "")
		if len(fields) == 0 {
			continue
		}
		p := influxdb2.NewPoint("talon.status", nil, fields, time.Now())
		writeAPI.WritePoint(p)
	}
}
