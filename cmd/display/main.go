package main

import "github.com/relabs-tech/accurate_clock/internal/app"

func main() {
	app.Main("starting accurate-clock OLED display (MQTT subscriber)", app.RunDisplay)
}
