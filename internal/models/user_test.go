package models

import "testing"

func TestReservationKeyCaseInsensitive(t *testing.T) {
	if ReservationKey("Alice") != ReservationKey("aLiCe") {
		t.Error("reservation keys should be case-insensitive")
	}
	if got := ReservationKey("Bob_99"); got != "bob_99" {
		t.Errorf("ReservationKey = %q, want bob_99", got)
	}
}

func TestStaleReservationKey(t *testing.T) {
	cases := []struct {
		old, new, want string
	}{
		{"", "alice", ""},           // first profile write, nothing stale
		{"alice", "alice", ""},      // unchanged
		{"Alice", "aLiCe", ""},      // pure case change maps to the same key
		{"alice", "bob", "alice"},   // rename frees the old reservation
		{"Alice", "bob", "alice"},   // stale key is the folded form
		{"old_name", "new_name", "old_name"},
	}
	for _, tc := range cases {
		if got := StaleReservationKey(tc.old, tc.new); got != tc.want {
			t.Errorf("StaleReservationKey(%q, %q) = %q, want %q", tc.old, tc.new, got, tc.want)
		}
	}
}

func TestCreateProfileRequestValidation(t *testing.T) {
	for _, name := range []string{"abc", "Alice_99", "a_b_c_d_e_f_g_h_i_j"} {
		req := CreateProfileRequest{Username: name}
		if errs := req.Validate(); len(errs) != 0 {
			t.Errorf("username %q rejected: %v", name, errs)
		}
	}
	for _, name := range []string{"", "ab", "has space", "way_too_long_for_a_username", "emoji💥"} {
		req := CreateProfileRequest{Username: name}
		if errs := req.Validate(); len(errs) == 0 {
			t.Errorf("username %q accepted, want rejection", name)
		}
	}
}
