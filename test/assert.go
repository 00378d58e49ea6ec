package test

import (
	"errors"
	"testing"
)

// AssertEqual reports a test error when expected and actual differ.
func AssertEqual[T comparable](t testing.TB, expected, actual T) bool {
	t.Helper()

	if expected != actual {
		t.Errorf(""+
			"Not equal: \n"+
			"Expected: %v\n"+
			"Actual: %v", expected, actual)
		return false
	}

	return true
}

// AssertErrorIs reports a test error when err does not wrap target.
func AssertErrorIs(t testing.TB, err, target error) bool {
	t.Helper()

	if !errors.Is(err, target) {
		t.Errorf(""+
			"Error mismatch: \n"+
			"Expected: %v\n"+
			"Actual: %v", target, err)
		return false
	}

	return true
}

// AssertNoError reports a test error when err is non-nil.
func AssertNoError(t testing.TB, err error) bool {
	t.Helper()

	if err != nil {
		t.Errorf("Unexpected error: %v", err)
		return false
	}

	return true
}
