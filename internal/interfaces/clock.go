package interfaces

import "time"

// Clock abstracts the engine's only suspension points so tests can run the
// chase and close loops without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}
