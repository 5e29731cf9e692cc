package main

import (
	"time"

	"github.com/midbel/toml"
)

func Configure(file string) (Setting, error) {
	var s Setting
	return s, toml.DecodeFile(file, &s)
}

// Site is one observer to rank the catalog against.
type Site struct {
	Label string

	Lat float64 `toml:"latitude"`
	Lng float64 `toml:"longitude"`
	Alt float64 `toml:"altitude"`
}

// Setting is the diag configuration file layout:
//
//	catalog = "active.json"
//	metric  = "surface"
//	limit   = 5
//
//	[[site]]
//	label     = "mojave"
//	latitude  = 35.05
//	longitude = -118.15
type Setting struct {
	Catalog string
	Satcat  string
	Metric  string
	Limit   int
	At      time.Time `toml:"dtquery"`

	Sites []Site `toml:"site"`
}
