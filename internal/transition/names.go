package transition

// Registered strategy names.
const (
	Crossfade = "crossfade"
	BeatSync  = "beat_sync"
	EchoFade  = "echo_fade"
	Harmonic  = "harmonic"
)
