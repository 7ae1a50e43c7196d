package pathvalidate

import "testing"

func TestValidate_RejectsTraversal(t *testing.T) {
	cases := []string{
		"../etc/passwd",
		"a/../../b",
		"a/%2e%2e/b",
		`C:\safe\..\..\windows\system32`,
	}
	for _, p := range cases {
		if err := Validate(p, true); err == nil {
			t.Errorf("Validate(%q) = nil, want error", p)
		}
	}
}

func TestValidate_AcceptsPlainRelative(t *testing.T) {
	if err := Validate("src/foo/bar_test.go", false); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RejectsNulAndEmpty(t *testing.T) {
	if err := Validate("", false); err == nil {
		t.Error("expected error for empty path")
	}
	if err := Validate("foo\x00bar", false); err == nil {
		t.Error("expected error for NUL byte")
	}
}

func TestValidate_RejectsDangerousProtocols(t *testing.T) {
	cases := []string{"javascript:alert(1)", "data:text/plain;base64,AA", "file:///etc/passwd"}
	for _, p := range cases {
		if err := Validate(p, false); err == nil {
			t.Errorf("Validate(%q) = nil, want error", p)
		}
	}
}

func TestValidate_WindowsADS(t *testing.T) {
	if err := Validate(`C:\folder\file.txt:stream:$DATA`, true); err == nil {
		t.Error("expected error for ADS syntax")
	}
	if err := Validate(`C:\folder\file.txt`, true); err != nil {
		t.Errorf("Validate() = %v, want nil for plain drive path", err)
	}
}

func TestValidate_WindowsReservedNames(t *testing.T) {
	cases := []string{`C:\dir\CON`, `C:\dir\con.txt`, `C:\dir\COM1.log`}
	for _, p := range cases {
		if err := Validate(p, true); err == nil {
			t.Errorf("Validate(%q) = nil, want error", p)
		}
	}
}

func TestValidate_WindowsExtendedLengthPrefix(t *testing.T) {
	cases := []string{`\\?\C:\foo`, `\\.\C:\foo`}
	for _, p := range cases {
		if err := Validate(p, true); err == nil {
			t.Errorf("Validate(%q) = nil, want error", p)
		}
	}
}

func TestValidate_LengthLimits(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if err := Validate(string(long), true); err == nil {
		t.Error("expected error for path exceeding Windows limit")
	}
}

func TestValidate_RejectsWindowsTrailingDotConfusion(t *testing.T) {
	// Windows strips trailing dots/spaces when resolving a component on
	// disk, so "C:\dir\foo." names the same file as "C:\dir\foo" even
	// though the literal path differs from its own normalized form.
	if err := Validate(`C:\dir\foo.`, true); err == nil {
		t.Error("expected error for trailing-dot path confusion")
	}
}

func TestResolveWithinRoot_RejectsEscape(t *testing.T) {
	if _, err := ResolveWithinRoot("/project", "../../etc/passwd", false); err == nil {
		t.Error("expected error for path escaping root")
	}
}

func TestResolveWithinRoot_AcceptsInside(t *testing.T) {
	abs, err := ResolveWithinRoot("/project", "src/foo.go", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if abs != "/project/src/foo.go" {
		t.Errorf("got %q, want /project/src/foo.go", abs)
	}
}
