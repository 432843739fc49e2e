package version

// Current is the release version, without a "v" prefix.
const Current = "0.4.0"
