package cmd

import (
	"archive/zip"
	"bytes"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

const report = "id,name\n1,alpha\n2,beta\n3,gamma\n"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOutput(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "report.csv")
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPackUnpack(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, strings.Repeat(report, 500))
	archive := filepath.Join(dir, "out.csv.zip")

	if _, err := run(t, "pack", in, "-o", archive); err != nil {
		t.Fatalf("pack failed: %v", err)
	}

	out := filepath.Join(dir, "restored.csv")
	if _, err := run(t, "unpack", archive, "-o", out); err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	got, err := ioutil.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != strings.Repeat(report, 500) {
		t.Errorf("unpacked %d bytes", len(got))
	}

	stdout, err := run(t, "unpack", archive, "-o", "-")
	if err != nil {
		t.Fatalf("unpack to stdout failed: %v", err)
	}
	if stdout != strings.Repeat(report, 500) {
		t.Errorf("stdout has %d bytes", len(stdout))
	}
}

func TestPackDefaultOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, report)
	if _, err := run(t, "pack", in, "-o", "", "--backend", "stdlib", "--level", "1"); err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	defer run(t, "pack", in, "-o", filepath.Join(dir, "reset.zip"), "--backend", "klauspost", "--level", "9")

	zr, err := zip.OpenReader(in + ".zip")
	if err != nil {
		t.Fatalf("archive/zip rejected %s: %v", in+".zip", err)
	}
	defer zr.Close()
	if name := zr.File[0].Name; name != "report.csv" {
		t.Errorf("entry name %q, want report.csv", name)
	}
}

func TestPackStdinNeedsOutput(t *testing.T) {
	if _, err := run(t, "pack", "-o", ""); err == nil {
		t.Error("pack from stdin without --output succeeded")
	}
}

func TestInspectAndVerify(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, report)
	archive := filepath.Join(dir, "report.csv.zip")
	if _, err := run(t, "pack", in, "-o", archive); err != nil {
		t.Fatalf("pack failed: %v", err)
	}

	out, err := run(t, "inspect", archive)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, want := range []string{"entry", "report.csv", "zip64 directory field  false", "zip64 end record       none"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "mismatch") {
		t.Errorf("inspect reports a mismatch:\n%s", out)
	}

	out, err = run(t, "verify", archive)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), ": ok") {
		t.Errorf("verify output %q", out)
	}
}

func TestVerifyRejectsForeignArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"a.txt", "b.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(report))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := run(t, "verify", path); err == nil {
		t.Error("verify accepted a foreign archive")
	}
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, strings.Repeat(report, 100))
	archive := filepath.Join(dir, "report.csv.zip")
	if _, err := run(t, "pack", in, "-o", archive); err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	data, err := ioutil.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	prefix := []byte("not part of the archive")
	embedded := append(append([]byte{}, prefix...), data...)
	if err := ioutil.WriteFile(filepath.Join(dir, "embedded.bin"), embedded, 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	out, err := run(t, "fetch", srv.URL+"/report.csv.zip", "-o", "-", "--offset", "0")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if out != strings.Repeat(report, 100) {
		t.Errorf("fetched %d bytes", len(out))
	}

	target := filepath.Join(dir, "fetched.csv")
	if _, err := run(t, "fetch", srv.URL+"/embedded.bin", "-o", target, "--offset", "23"); err != nil {
		t.Fatalf("fetch with offset failed: %v", err)
	}
	got, err := ioutil.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != strings.Repeat(report, 100) {
		t.Errorf("fetched %d bytes at offset", len(got))
	}

	if _, err := run(t, "fetch", srv.URL+"/missing.zip", "-o", "-", "--offset", "0"); err == nil {
		t.Error("fetch of a missing archive succeeded")
	}
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	viper.Set("log-level", "loud")
	defer viper.Set("log-level", "info")
	if err := setupLogging(rootCmd, nil); err == nil {
		t.Error("setupLogging accepted an unknown level")
	}
}

func TestPackUnreadableInputLeavesNoArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "out.zip")
	if _, err := run(t, "pack", dir, "-o", archive); err == nil {
		t.Fatal("pack of a directory succeeded")
	}
	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Errorf("partial archive left behind: %v", err)
	}
}

func TestErrorsPrintedOnce(t *testing.T) {
	out, err := run(t, "unpack", filepath.Join(t.TempDir(), "missing.zip"), "-o", "-")
	if err == nil {
		t.Fatal("unpack of a missing archive succeeded")
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("command printed the error itself:\n%s", out)
	}
}
