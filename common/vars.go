package common

// Version is set at build time via -ldflags "-X ...common.Version=<tag>".
var Version = "dev"

