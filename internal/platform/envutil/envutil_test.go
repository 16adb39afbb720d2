package envutil

import (
	"testing"
	"time"
)

func TestInt(t *testing.T) {
	t.Setenv("ACADEMY_TEST_INT", "12")
	if got := Int("ACADEMY_TEST_INT", 3); got != 12 {
		t.Fatalf("got %d", got)
	}
	t.Setenv("ACADEMY_TEST_INT", "twelve")
	if got := Int("ACADEMY_TEST_INT", 3); got != 3 {
		t.Fatalf("bad value should fall back, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("ACADEMY_TEST_DUR", "90s")
	if got := Duration("ACADEMY_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("got %s", got)
	}
	t.Setenv("ACADEMY_TEST_DUR", "45")
	if got := Duration("ACADEMY_TEST_DUR", time.Second); got != 45*time.Second {
		t.Fatalf("bare seconds: got %s", got)
	}
	t.Setenv("ACADEMY_TEST_DUR", "")
	if got := Duration("ACADEMY_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("default: got %s", got)
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("ACADEMY_TEST_BOOL", "off")
	if Bool("ACADEMY_TEST_BOOL", true) {
		t.Fatalf("expected false")
	}
	t.Setenv("ACADEMY_TEST_LIST", " a, ,b ,")
	got := List("ACADEMY_TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %#v", got)
	}
}
