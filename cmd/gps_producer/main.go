package main

import "github.com/relabs-tech/accurate_clock/internal/app"

func main() {
	app.Main("starting accurate-clock GPS producer (NMEA → MQTT)", app.RunGPSProducer)
}
