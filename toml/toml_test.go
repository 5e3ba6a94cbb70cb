package toml_test

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	itoml "github.com/influxdata/influxdb-cluster/toml"
)

func TestDuration_UnmarshalText(t *testing.T) {
	for _, test := range []struct {
		str  string
		want time.Duration
	}{
		{"1s", time.Second},
		{"10m", 10 * time.Minute},
		{"168h", 7 * 24 * time.Hour},
		{"1h30m", 90 * time.Minute},
	} {
		var d itoml.Duration
		if err := d.UnmarshalText([]byte(test.str)); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if d != itoml.Duration(test.want) {
			t.Fatalf("wanted: %s got: %s", test.want, d)
		}
	}

	var d itoml.Duration
	if err := d.UnmarshalText([]byte("7 days")); err == nil {
		t.Fatal("input should have failed: 7 days")
	}
}

func TestPrecision_Ticks(t *testing.T) {
	week := itoml.Duration(7 * 24 * time.Hour)
	for _, test := range []struct {
		p    itoml.Precision
		want int64
	}{
		{itoml.Second, 604800},
		{itoml.Millisecond, 604800000},
		{itoml.Microsecond, 604800000000},
		{itoml.Nanosecond, 604800000000000},
		{"", 604800000},
	} {
		got, err := test.p.Ticks(week)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got != test.want {
			t.Fatalf("precision %q: wanted %d got %d", test.p, test.want, got)
		}
	}

	var p itoml.Precision
	if err := p.UnmarshalText([]byte("h")); err == nil {
		t.Fatal("expected error for unknown precision")
	}
}

func TestConfig_Decode(t *testing.T) {
	var c struct {
		Interval  itoml.Duration  `toml:"interval"`
		Precision itoml.Precision `toml:"precision"`
	}
	if _, err := toml.Decode(`
interval = "24h"
precision = "us"
`, &c); err != nil {
		t.Fatal(err)
	}

	want := struct {
		Interval  itoml.Duration
		Precision itoml.Precision
	}{itoml.Duration(24 * time.Hour), itoml.Microsecond}
	got := struct {
		Interval  itoml.Duration
		Precision itoml.Precision
	}{c.Interval, c.Precision}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}
