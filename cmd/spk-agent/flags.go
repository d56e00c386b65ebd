package main

import "time"

// Flag structs to decouple cobra from logic for testing.

type ServeFlags struct {
	ConfigPath string
	Listen     string
	NoDaemon   bool // start the control plane without spawning the node
}

type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type PinFlags struct {
	CID  string
	Name string
	ClientFlags
}

type ChallengeFlags struct {
	CID     string
	Salt    string
	Indices []int64
	ClientFlags
}
