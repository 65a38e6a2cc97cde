package adoflow

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/MuiGoku123432/adoflow.Version=...".
var Version = "0.1.0"
