package ifftext_test

import (
	"bytes"
	"testing"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/iff/ifftext"
)

const skeletonText = `
// two joint skeleton
form "SLOD" "0000" {
	chunk "INFO" { int16 1 }
	form "SKTM" "0002" {
		chunk "INFO" { int32 2 }
		chunk "NAME" { string "root" string "a\tb" }
		chunk "PRNT" { int32 -1 int32 0 }
		chunk "RPRE" { vec4 1 0 0 0  vec4 1 0 0 0 }
		chunk "BPTR" { vec3 0 0 0  vec3 1.5 -2 3e-2 }
		chunk "MISC" { uint8 255 uint16 0xffff uint32 0x80000000 bool true float -inf tag "ABCD" hex "00 ff" }
		chunk "NONE" {}
	}
}
`

func TestCompile(t *testing.T) {
	data, err := ifftext.Compile([]byte(skeletonText))
	if err != nil {
		t.Fatal(err)
	}

	r := iff.NewReader(data)
	if _, err := r.EnterFormTag(iff.NewTag("SLOD")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.EnterChunkTag(iff.NewTag("INFO")); err != nil {
		t.Fatal(err)
	}
	if v := r.ReadInt16(); v != 1 {
		t.Errorf("lod count %d", v)
	}
	r.ExitChunk()
	if _, err := r.EnterFormTag(iff.NewTag("SKTM")); err != nil {
		t.Fatal(err)
	}
	r.Skip()
	r.EnterChunkTag(iff.NewTag("NAME"))
	if names := r.ReadStrings(); len(names) != 2 || names[1] != "a\tb" {
		t.Errorf("names %q", names)
	}
	r.ExitChunk()
	r.EnterChunkTag(iff.NewTag("PRNT"))
	if a, b := r.ReadInt32(), r.ReadInt32(); a != -1 || b != 0 {
		t.Errorf("parents %d %d", a, b)
	}
	r.ExitChunk()
	r.Skip()
	r.EnterChunkTag(iff.NewTag("BPTR"))
	r.ReadVec3()
	if v := r.ReadVec3(); v != [3]float32{1.5, -2, 0.03} {
		t.Errorf("translation %v", v)
	}
	r.ExitChunk()
	size, err := r.EnterChunkTag(iff.NewTag("MISC"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 1+2+4+1+4+4+2 {
		t.Errorf("MISC size %d", size)
	}
	if err := r.ExitChunk(); err != nil {
		t.Fatal(err)
	}
	if size, err := r.EnterChunkTag(iff.NewTag("NONE")); err != nil || size != 0 {
		t.Errorf("NONE: %d %v", size, err)
	}
}

func TestDecompileRoundTrip(t *testing.T) {
	data, err := ifftext.Compile([]byte(skeletonText))
	if err != nil {
		t.Fatal(err)
	}
	text, err := ifftext.Decompile(data)
	if err != nil {
		t.Fatal(err)
	}
	again, err := ifftext.Compile(text)
	if err != nil {
		t.Fatalf("%v\n%s", err, text)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("round trip mismatch\n%s", text)
	}
}

func TestCompileErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
	}{
		{"empty", ``},
		{"chunk root", `chunk "INFO" { int8 1 }`},
		{"short tag", `form "SLD" "0000" {}`},
		{"unclosed", `form "SLOD" "0000" { chunk "INFO" { int8 1 }`},
		{"overflow", `form "SLOD" "0000" { chunk "INFO" { int8 300 } }`},
		{"missing vec component", `form "SLOD" "0000" { chunk "INFO" { vec3 1 2 } }`},
		{"trailing", `form "SLOD" "0000" {} form "SLOD" "0000" {}`},
		{"form in chunk", `form "SLOD" "0000" { chunk "INFO" { form "A" "0000" {} } }`},
		{"bad hex", `form "SLOD" "0000" { chunk "INFO" { hex "0g" } }`},
	} {
		if _, err := ifftext.Compile([]byte(tc.text)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
