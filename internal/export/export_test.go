package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/normanking/revoice/pkg/types"
)

func TestSFTRoundTrip(t *testing.T) {
	in := []types.SFTExample{
		{System: "You are Alex.", User: "How was your day?", Assistant: "Long, honestly. But good."},
		{System: "You are Alex.", User: "What's for dinner?", Assistant: "Leftovers... again."},
		{System: "", User: "unicode: 日本語 — em dash \"quotes\"", Assistant: "newline\nand\ttab"},
	}

	var buf bytes.Buffer
	if err := WriteSFT(&buf, in); err != nil {
		t.Fatalf("WriteSFT: %v", err)
	}

	out, err := ReadSFT(&buf)
	if err != nil {
		t.Fatalf("ReadSFT: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("round trip changed count: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("example %d changed: %+v -> %+v", i, in[i], out[i])
		}
	}
}

func TestDPORoundTrip(t *testing.T) {
	in := []types.DPOExample{
		{Prompt: "Tell me a joke", Chosen: "A dry one-liner.", Rejected: "Certainly! Here is a joke!"},
		{Prompt: "p2", Chosen: "c2", Rejected: "r2"},
	}

	var buf bytes.Buffer
	if err := WriteDPO(&buf, in); err != nil {
		t.Fatalf("WriteDPO: %v", err)
	}
	out, err := ReadDPO(&buf)
	if err != nil {
		t.Fatalf("ReadDPO: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("round trip changed count: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("example %d changed: %+v -> %+v", i, in[i], out[i])
		}
	}
}

func TestSFTLineFormat(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSFT(&buf, []types.SFTExample{
		{System: "sys", User: "usr", Assistant: "asst"},
	})
	if err != nil {
		t.Fatalf("WriteSFT: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	want := `{"messages":[{"role":"system","content":"sys"},{"role":"user","content":"usr"},{"role":"assistant","content":"asst"}]}`
	if line != want {
		t.Errorf("wire format mismatch:\n got %s\nwant %s", line, want)
	}
}

func TestWritePackage(t *testing.T) {
	dir := t.TempDir()
	pkg := &types.TrainingDataPackage{
		MigrationID: "mig-1",
		SFT: []types.SFTExample{
			{System: "s", User: "u", Assistant: "a"},
		},
		DPO: []types.DPOExample{
			{Prompt: "p", Chosen: "c", Rejected: "r"},
		},
		PackagedAt: time.Now().UTC(),
	}

	paths, err := WritePackage(dir, pkg)
	if err != nil {
		t.Fatalf("WritePackage: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %d", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("missing export file %s: %v", p, err)
		}
	}

	if filepath.Base(paths[0]) != "revoice_sft.jsonl" {
		t.Errorf("unexpected sft filename %s", paths[0])
	}
}

func TestWritePackageSkipsEmptyDPO(t *testing.T) {
	dir := t.TempDir()
	pkg := &types.TrainingDataPackage{
		MigrationID: "mig-2",
		SFT:         []types.SFTExample{{System: "s", User: "u", Assistant: "a"}},
	}

	paths, err := WritePackage(dir, pkg)
	if err != nil {
		t.Fatalf("WritePackage: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("expected sft file only, got %v", paths)
	}
}
