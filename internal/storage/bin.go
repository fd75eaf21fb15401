package storage

// FfmpegPath and FfprobePath hold binaries configured or discovered at
// startup. Empty means look the command up on PATH.
var (
	FfmpegPath  string
	FfprobePath string
)
