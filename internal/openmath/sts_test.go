package openmath

import (
	"encoding/xml"
	"testing"
)

func xmlName(local string) xml.Name {
	return xml.Name{Local: local}
}

const arithSTS = `<CDSignatures xmlns="http://www.openmath.org/OpenMathCDS"
  xmlns:om="http://www.openmath.org/OpenMath" type="sts" cd="arith1">
  <Signature name="gcd">
    <om:OMOBJ>
      <om:OMA>
        <om:OMS name="mapsto" cd="sts"/>
        <om:OMA>
          <om:OMS name="nassoc" cd="sts"/>
          <om:OMV name="SemiGroup"/>
        </om:OMA>
        <om:OMV name="SemiGroup"/>
      </om:OMA>
    </om:OMOBJ>
  </Signature>
  <Signature name="abs">
    <om:OMOBJ>
      <om:OMA>
        <om:OMS name="mapsto" cd="sts"/>
        <om:OMV name="R"/>
        <om:OMV name="R"/>
      </om:OMA>
    </om:OMOBJ>
  </Signature>
  <Signature name="power">
    <om:OMOBJ>
      <om:OMA>
        <om:OMS name="mapsto" cd="sts"/>
        <om:OMV name="R"/>
        <om:OMV name="R"/>
        <om:OMV name="R"/>
      </om:OMA>
    </om:OMOBJ>
  </Signature>
</CDSignatures>`

func TestParseSTS(t *testing.T) {
	path := writeFixture(t, "arith1.sts", arithSTS)

	sigs, err := ParseSTS(path)
	if err != nil {
		t.Fatalf("ParseSTS: %v", err)
	}
	if len(sigs) != 3 {
		t.Fatalf("signatures: got %d want %d", len(sigs), 3)
	}

	tests := []struct {
		name string
		want string
	}{
		{"gcd", "nassoc(SemiGroup) -> SemiGroup"},
		{"abs", "R -> R"},
		{"power", "(R, R) -> R"},
	}
	for _, tt := range tests {
		if got := sigs[tt.name]; got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseSTS_BareElements(t *testing.T) {
	path := writeFixture(t, "bare.sts", `<CDSignatures>
  <Signature name="twice">
    <OMOBJ>
      <OMA>
        <OMS name="mapsto" cd="sts"/>
        <OMV name="Z"/>
        <OMV name="Z"/>
      </OMA>
    </OMOBJ>
  </Signature>
</CDSignatures>`)

	sigs, err := ParseSTS(path)
	if err != nil {
		t.Fatalf("ParseSTS: %v", err)
	}
	if got := sigs["twice"]; got != "Z -> Z" {
		t.Fatalf("twice: got %q", got)
	}
}

func TestParseSTS_Malformed(t *testing.T) {
	path := writeFixture(t, "bad.sts", `<CDSignatures><Signature`)
	if _, err := ParseSTS(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRenderOM_Plain(t *testing.T) {
	node := omNode{
		XMLName: xmlName("OMA"),
		Children: []omNode{
			{XMLName: xmlName("OMS"), Name: "times"},
			{XMLName: xmlName("OMV"), Name: "a"},
			{XMLName: xmlName("OMV"), Name: "b"},
		},
	}
	if got := renderOM(node); got != "times(a, b)" {
		t.Fatalf("got %q", got)
	}
}
