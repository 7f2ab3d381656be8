package keepawake

import "testing"

func TestNoopInhibitorReleaseIsSafe(t *testing.T) {
	var inh Inhibitor = noopInhibitor{}
	inh.Release()
	inh.Release()
}

func TestProcessInhibitorReleaseWithoutProcessIsSafe(t *testing.T) {
	inh := &processInhibitor{}
	inh.Release()
}

func TestAcquireReturnsAnInhibitor(t *testing.T) {
	inh := Acquire("test run")
	if inh == nil {
		t.Fatal("Acquire returned a nil Inhibitor")
	}
	inh.Release()
}
