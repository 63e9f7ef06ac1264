package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/robotalks/lst.go/pkg/monitor"
	"github.com/robotalks/lst.go/pkg/mqtt"
)

var (
	mqttURL = mqtt.DefaultURL
)

func init() {
	if val := os.Getenv("LST_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "")
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.ConnectWait(10 * time.Second); err != nil {
		log.Fatalln(err)
	}
	monitor.New(q, os.Stdout).Start()
	<-(chan struct{})(nil)
}
