package main

// Version is the application version, overridden at build time via
// -ldflags "-X main.Version=...".
var Version = "0.9.0"
