package aviation

import "testing"

func TestWithinChannel25kHz(t *testing.T) {
	tests := []struct {
		name   string
		active string
		other  string
		want   bool
	}{
		{"exact", "121.500", "121.500", true},
		{"8.33 channel name", "118.005", "118.000", true},
		{"upper half edge", "121.5125", "121.500", true},
		{"lower half edge excluded", "121.4875", "121.500", false},
		{"adjacent 25 kHz channel", "121.525", "121.500", false},
		{"different band", "124.350", "121.500", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseFrequency(tt.active)
			if err != nil {
				t.Fatal(err)
			}
			o, err := ParseFrequency(tt.other)
			if err != nil {
				t.Fatal(err)
			}
			if got := a.WithinChannel25kHz(o); got != tt.want {
				t.Fatalf("%s within %s = %v, want %v", tt.active, tt.other, got, tt.want)
			}
		})
	}
}

func TestZeroFrequencyNeverMatches(t *testing.T) {
	if Frequency(0).WithinChannel25kHz(0) {
		t.Fatal("unset frequencies must not match")
	}
}

func TestParseFrequencyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "-121.5", "0"} {
		if _, err := ParseFrequency(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestNewCallsignNormalises(t *testing.T) {
	if got := NewCallsign("  eddf_twr "); got != "EDDF_TWR" {
		t.Fatalf("got %q", got)
	}
}

func TestDistanceUnsetPosition(t *testing.T) {
	p := Position{Lat: 50, Lon: 8}
	if d := p.DistanceNM(Position{}); d != -1 {
		t.Fatalf("expected -1 for unset position, got %f", d)
	}
}

func TestStatusMessageListHasErrors(t *testing.T) {
	l := StatusMessageList{NewInfo("ok"), NewWarning("hm")}
	if l.HasErrors() {
		t.Fatal("no errors expected")
	}
	l = append(l, NewError("bad"))
	if !l.HasErrors() {
		t.Fatal("error expected")
	}
}
