// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import "github.com/relabs-tech/accurate_clock/internal/app"

func main() {
	app.Main("starting accurate-clock correction service (feed + time reference → MQTT)", app.RunClock)
}
