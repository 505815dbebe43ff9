package checksum

import "testing"

func TestSHA256(t *testing.T) {
	got := SHA256([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("SHA256 mismatch: got %s want %s", got, want)
	}
}

func TestSHA256Empty(t *testing.T) {
	if got := SHA256(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("SHA256 of empty input: got %s", got)
	}
}

func TestScriptIgnoresLineEndings(t *testing.T) {
	if Script([]byte("a;\r\nb;\r\n")) != Script([]byte("a;\nb;\n")) {
		t.Fatal("CRLF and LF bodies should hash the same")
	}
	if Script([]byte("a;")) == Script([]byte("b;")) {
		t.Fatal("different bodies should hash differently")
	}
}
