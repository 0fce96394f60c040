// stubd is the development backend: a deterministic stand-in for the
// real classification and transcription service, good enough to drive
// the client end to end on a laptop.
package main

import (
	"github.com/scopenote/scopenote/internal/bootstrap"
)

func main() {
	bootstrap.RunStub()
}
