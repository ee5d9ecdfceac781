package nix

import "fmt"

func errBase32Length(s string, want int) error {
	return fmt.Errorf("nix base32: %q has length %d, want %d", s, len(s), want)
}

func errBase32Char(c byte) error {
	return fmt.Errorf("nix base32: invalid character %q", c)
}
