// Package testutil provides the hand-rolled assertion helpers shared by
// this module's test files, in the same style as the teacher driver's
// test-integration assert helpers (no_test.go).
package testutil

import (
	"reflect"
	"testing"
)

func AssertNil(t *testing.T, v interface{}) {
	t.Helper()
	if !isNil(v) {
		t.Fatalf("expected nil (or default value), got %+v", v)
	}
}

func AssertNotNil(t *testing.T, v interface{}) {
	t.Helper()
	if isNil(v) {
		t.Fatalf("expected not nil, got nil")
	}
}

func AssertEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	if a == nil || b == nil {
		if a != b {
			t.Fatalf("expected %+v to equal %+v, but did not", a, b)
		}
		return
	}
	if reflect.TypeOf(a).Kind() == reflect.Slice && reflect.TypeOf(b).Kind() == reflect.Slice {
		AssertSliceEquals(t, a, b)
		return
	}
	convertedA := a
	if reflect.TypeOf(a).ConvertibleTo(reflect.TypeOf(b)) {
		convertedA = reflect.ValueOf(a).Convert(reflect.TypeOf(b)).Interface()
	}
	if !reflect.DeepEqual(convertedA, b) {
		t.Fatalf("expected %+v to equal %+v, but did not", a, b)
	}
}

func AssertSliceEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	valueA := reflect.ValueOf(a)
	valueB := reflect.ValueOf(b)
	lengthA := valueA.Len()
	if lengthA != valueB.Len() {
		t.Fatalf("expected %+v to equal %+v, but did not", a, b)
	}
	for i := 0; i < lengthA; i++ {
		AssertEquals(t, valueA.Index(i).Interface(), valueB.Index(i).Interface())
	}
}

func AssertTrue(t *testing.T, b bool) {
	t.Helper()
	if !b {
		t.Fatalf("expected true, got false")
	}
}

func AssertFalse(t *testing.T, b bool) {
	t.Helper()
	if b {
		t.Fatalf("expected false, got true")
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	value := reflect.ValueOf(v)
	switch value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return value.IsNil()
	default:
		return false
	}
}
